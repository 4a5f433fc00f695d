package app

import (
	"github.com/mkweon/cephauto/internal/registry"
	"github.com/mkweon/cephauto/modules/airtable"
	"github.com/mkweon/cephauto/modules/dentweb"
	"github.com/mkweon/cephauto/modules/images"
	"github.com/mkweon/cephauto/modules/notify"
	"github.com/mkweon/cephauto/modules/ocr"
	"github.com/mkweon/cephauto/modules/webceph"
)

// coreModules is the definitive list of all modules that are compiled
// into the cephauto binary.
var coreModules = []registry.Module{
	&dentweb.Module{},
	&ocr.Module{},
	&images.Module{},
	&webceph.Module{},
	&airtable.Module{},
	&notify.Module{},
}
