package application

import (
	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
	"github.com/HenryGill4/OpCentrix-sub006/internal/scheduling"
)

// Repositories groups the persistence collaborators.
type Repositories struct {
	Jobs       domain.JobRepository
	Machines   domain.MachineRepository
	Parts      domain.PartRepository
	Stages     domain.StageRepository
	Executions domain.ExecutionRepository
}

// EngineConfig configures the scheduling calculators.
type EngineConfig struct {
	Materials  domain.MaterialTable
	Changeover scheduling.ChangeoverConfig
	Layout     scheduling.LayoutConfig
	Cost       scheduling.CostConfig
}

// DefaultEngineConfig returns the compiled defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Materials:  domain.DefaultMaterialTable(),
		Changeover: scheduling.DefaultChangeoverConfig(),
		Layout:     scheduling.DefaultLayoutConfig(),
		Cost:       scheduling.DefaultCostConfig(),
	}
}

// Engine holds the calculators shared by the scheduling service and the
// stage tracker. All of them are safe for concurrent use.
type Engine struct {
	Parameters *scheduling.ParameterValidator
	Changeover *scheduling.ChangeoverCalculator
	Conflicts  *scheduling.ConflictValidator
	Cost       *scheduling.CostEstimator
	Layout     *scheduling.LayoutCalculator
	Views      *scheduling.ViewBuilder
}

// NewEngine builds the calculators. machines feeds the view grid.
func NewEngine(cfg EngineConfig, machines scheduling.MachineLister) *Engine {
	params := scheduling.NewParameterValidator(cfg.Materials)
	changeover := scheduling.NewChangeoverCalculator(cfg.Changeover, params.Materials())
	return &Engine{
		Parameters: params,
		Changeover: changeover,
		Conflicts:  scheduling.NewConflictValidator(params, changeover),
		Cost:       scheduling.NewCostEstimator(cfg.Cost, params.Materials()),
		Layout:     scheduling.NewLayoutCalculator(cfg.Layout),
		Views:      scheduling.NewViewBuilder(machines),
	}
}
