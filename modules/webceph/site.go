package webceph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/mkweon/cephauto/internal/coords"
	"github.com/mkweon/cephauto/internal/ctxlog"
	"github.com/mkweon/cephauto/internal/patient"
	"github.com/mkweon/cephauto/internal/settings"
)

// ErrAnalysisTimeout is returned when the analysis does not finish
// before the configured deadline.
var ErrAnalysisTimeout = errors.New("analysis did not finish in time")

// Selectors of the analysis site. The login and new-patient forms have
// stable element IDs; the rest is matched by text.
const (
	selEmail         = "#id_email"
	selPassword      = "#id_password"
	selLoginButton   = "input.btn.btn-home-color.btn-block"
	selPatientID     = "#id_patient_id"
	selFirstName     = "#id_first_name"
	selLastName      = "#id_last_name"
	selRace          = "#id_race"
	selSex           = "#id_sex"
	selBirthDate     = "#id_birth_date"
	selAgreement     = "#check_agreement_from_patient"
	selPatientSubmit = "#new_patient_submit"
	selFileInput     = "input[type=file]"
)

// Site drives the analysis web app through an open browser.
type Site struct {
	browser *Browser
	cfg     settings.WebCeph
	coords  *coords.Cache

	timeout         time.Duration
	wait            time.Duration
	analysisTimeout time.Duration
	poll            time.Duration
}

// NewSite binds a browser to the configured site. The coordinate cache
// backs clicks on elements the site renders without a usable selector.
func NewSite(b *Browser, cfg settings.WebCeph, auto settings.Automation, cache *coords.Cache) *Site {
	s := &Site{
		browser:         b,
		cfg:             cfg,
		coords:          cache,
		timeout:         cfg.Timeout.Std(),
		wait:            auto.WaitTime.Std(),
		analysisTimeout: auto.AnalysisTimeout.Std(),
		poll:            auto.PollInterval.Std(),
	}
	if s.timeout <= 0 {
		s.timeout = 15 * time.Second
	}
	if s.analysisTimeout <= 0 {
		s.analysisTimeout = 10 * time.Minute
	}
	if s.poll <= 0 {
		s.poll = 15 * time.Second
	}
	return s
}

// Login signs in with the configured account and waits for the
// dashboard to load.
func (s *Site) Login(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("🔐 Logging in", "url", s.cfg.URL)

	err := s.browser.Run(s.timeout,
		chromedp.Navigate(s.cfg.URL),
		chromedp.WaitVisible(selEmail, chromedp.ByQuery),
		chromedp.SendKeys(selEmail, s.cfg.Email, chromedp.ByQuery),
		chromedp.SendKeys(selPassword, s.cfg.Password, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	// The home-page button class changes between site releases; fall back
	// to the generic submit button.
	if err := s.browser.Run(s.timeout, chromedp.Click(selLoginButton, chromedp.ByQuery)); err != nil {
		if err2 := s.browser.Run(s.timeout, chromedp.Click("button[type=submit]", chromedp.ByQuery)); err2 != nil {
			return fmt.Errorf("login failed: %w", err)
		}
	}
	if err := s.browser.Run(s.timeout, chromedp.Sleep(s.wait)); err != nil {
		return err
	}

	var loggedIn bool
	err = s.browser.Run(s.timeout,
		chromedp.Evaluate(`!document.querySelector('#id_email')`, &loggedIn),
	)
	if err != nil {
		return fmt.Errorf("login check failed: %w", err)
	}
	if !loggedIn {
		return errors.New("login rejected, check email and password")
	}
	return nil
}

// RegisterPatient opens the new-patient form and submits the record.
// An existing patient with the same ID makes the site reject the form;
// that case falls through to opening the existing patient instead.
func (s *Site) RegisterPatient(ctx context.Context, p *patient.Patient) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("🧑 Registering patient", "chart_no", p.ChartNo, "name", p.FullName())

	if err := s.clickControl(ctx, "+ 신규 환자", "webceph_new_patient"); err != nil {
		return fmt.Errorf("opening new patient form: %w", err)
	}

	err := s.browser.Run(s.timeout,
		chromedp.WaitVisible(selPatientID, chromedp.ByQuery),
		chromedp.SendKeys(selPatientID, p.ChartNo, chromedp.ByQuery),
		chromedp.SendKeys(selFirstName, p.GivenName, chromedp.ByQuery),
		chromedp.SendKeys(selLastName, p.FamilyName, chromedp.ByQuery),
		chromedp.SetValue(selRace, "Asian", chromedp.ByQuery),
		chromedp.SetValue(selSex, sexOptionValue(p.Sex), chromedp.ByQuery),
		chromedp.SetValue(selBirthDate, p.BirthDate, chromedp.ByQuery),
		chromedp.Click(selAgreement, chromedp.ByQuery),
		chromedp.Click(selPatientSubmit, chromedp.ByQuery),
		chromedp.Sleep(s.wait),
	)
	if err != nil {
		return fmt.Errorf("registering patient %s: %w", p.ChartNo, err)
	}
	return nil
}

// OpenPatient searches the patient list and opens the matching entry.
func (s *Site) OpenPatient(ctx context.Context, p *patient.Patient) error {
	err := s.browser.Run(s.timeout,
		clickByText(p.FullName()),
		chromedp.Sleep(s.wait),
	)
	if err != nil {
		return fmt.Errorf("opening patient %s: %w", p.ChartNo, err)
	}
	return nil
}

// NewRecord creates a dated record under the open patient. Every upload
// hangs off a record, so this runs before the images go up.
func (s *Site) NewRecord(ctx context.Context, day time.Time) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("📅 Creating record", "date", day.Format("2006-01-02"))

	if err := s.clickControl(ctx, "+ New Record", "webceph_new_record"); err != nil {
		return fmt.Errorf("creating record: %w", err)
	}
	if err := s.browser.Run(s.timeout, chromedp.Sleep(s.wait)); err != nil {
		return err
	}
	if err := s.clickControl(ctx, "Save", "webceph_save_record"); err != nil {
		return fmt.Errorf("saving record: %w", err)
	}
	return s.browser.Run(s.timeout, chromedp.Sleep(s.wait))
}

// UploadImages attaches the staged X-ray files to the open record.
func (s *Site) UploadImages(ctx context.Context, files []string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("⬆️ Uploading images", "count", len(files))

	err := s.browser.Run(s.timeout,
		chromedp.WaitVisible(selFileInput, chromedp.ByQuery),
		chromedp.SetUploadFiles(selFileInput, files, chromedp.ByQuery),
		chromedp.Sleep(s.wait),
	)
	if err != nil {
		return fmt.Errorf("uploading images: %w", err)
	}
	return nil
}

// StartAnalysis kicks the automatic analysis off and polls until the
// site reports it finished or the deadline passes.
func (s *Site) StartAnalysis(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("🧠 Starting analysis", "timeout", s.analysisTimeout)

	if err := s.clickControl(ctx, "Start Analysis", "webceph_start_analysis"); err != nil {
		return fmt.Errorf("starting analysis: %w", err)
	}

	deadline := time.Now().Add(s.analysisTimeout)
	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w (%s)", ErrAnalysisTimeout, s.analysisTimeout)
		}

		var done bool
		err := s.browser.Run(s.timeout,
			chromedp.Evaluate(analysisDoneJS, &done),
		)
		if err != nil {
			return fmt.Errorf("polling analysis status: %w", err)
		}
		if done {
			logger.Info("🧠 Analysis finished")
			return nil
		}
		logger.Debug("Analysis still running", "next_poll", s.poll)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.poll):
		}
	}
}

// DownloadReport triggers the PDF export. The browser drops the file
// into the run's download directory.
func (s *Site) DownloadReport(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("📥 Requesting report download")

	if err := s.clickControl(ctx, "Download PDF", "webceph_download_pdf"); err != nil {
		return fmt.Errorf("requesting report download: %w", err)
	}
	return nil
}

// clickControl clicks a control by its text and falls back to a
// calibrated screen coordinate when no selector matches, which happens
// on the canvas-rendered parts of the record page.
func (s *Site) clickControl(ctx context.Context, text, coordName string) error {
	clickErr := s.browser.Run(s.timeout, clickByText(text))
	if clickErr == nil {
		return nil
	}
	if s.coords == nil {
		return clickErr
	}
	pt, err := s.coords.Get(coordName)
	if err != nil {
		return clickErr
	}
	ctxlog.FromContext(ctx).Debug("Selector click failed, using cached coordinate",
		"text", text, "target", coordName, "x", pt.X, "y", pt.Y)
	return s.browser.Run(s.timeout, chromedp.MouseClickXY(float64(pt.X), float64(pt.Y)))
}

// analysisDoneJS checks the progress badge on the record page.
const analysisDoneJS = `(() => {
	const el = document.querySelector('.analysis-status, .progress-label');
	if (el) return /completed|100\s*%/i.test(el.textContent);
	return /analysis\s+completed/i.test(document.body.innerText);
})()`

// clickByText clicks the first button or link whose text matches.
func clickByText(text string) chromedp.Action {
	quoted := strings.ReplaceAll(text, `"`, `\"`)
	xpath := fmt.Sprintf(`//button[contains(., "%s")] | //a[contains(., "%s")] | //*[@role="button"][contains(., "%s")]`,
		quoted, quoted, quoted)
	return chromedp.Tasks{
		chromedp.WaitVisible(xpath, chromedp.BySearch),
		chromedp.Click(xpath, chromedp.BySearch),
	}
}

// sexOptionValue maps the internal sex code to the form's option value.
func sexOptionValue(sex string) string {
	switch sex {
	case patient.SexFemale:
		return "Female"
	default:
		return "Male"
	}
}
