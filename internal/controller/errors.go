package controller

import (
	"errors"

	"github.com/danielpatrickdp/cell-controller/internal/cells"
	"github.com/danielpatrickdp/cell-controller/internal/gate"
	"github.com/danielpatrickdp/cell-controller/internal/resource"
)

// Errors returned by the controller, re-exported so hosts can match them
// with errors.Is without importing the component packages.
var (
	ErrInsufficientCharge  = gate.ErrInsufficientCharge
	ErrInvalidState        = gate.ErrInvalidState
	ErrNoChargedCell       = cells.ErrNoChargedCell
	ErrRocketPresent       = cells.ErrRocketPresent
	ErrAllCellsFull        = cells.ErrAllCellsFull
	ErrUnsupportedResource = resource.ErrUnsupportedResource
	ErrNoCombinationRules  = resource.ErrNoCombinationRules

	ErrInvalidConfig = errors.New("invalid config")
)
