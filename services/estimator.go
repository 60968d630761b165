package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"car-price-app/engine"
	"car-price-app/features"
	"car-price-app/models"
	"car-price-app/utils"
)

// ErrInference marks any failure between feature alignment and the adjusted
// price. Callers report it once and keep serving.
var ErrInference = errors.New("inference failed")

// Engine power surcharge applied on top of the model output.
const (
	SurchargeThreshold   = 100.0
	SurchargeCoefficient = 0.005
)

// SurchargeMultiplier returns 1 + (power-100)*0.005 above 100 hp, else 1.
func SurchargeMultiplier(enginePower float64) float64 {
	if enginePower > SurchargeThreshold {
		return 1 + (enginePower-SurchargeThreshold)*SurchargeCoefficient
	}
	return 1
}

// Surcharge applies SurchargeMultiplier to price.
func Surcharge(price, enginePower float64) float64 {
	return price * SurchargeMultiplier(enginePower)
}

// InverseLog undoes the log1p transform the model was trained on.
func InverseLog(logPrice float64) float64 {
	return math.Expm1(logPrice)
}

// Pricing is the breakdown of one adjusted prediction.
type Pricing struct {
	LogPrice   float64
	BasePrice  float64
	Multiplier float64
	Price      float64
}

// PredictPrice runs the model on a single vector, inverts the log transform
// and applies the engine power surcharge. It either returns a complete
// Pricing or an error wrapping ErrInference.
func PredictPrice(ctx context.Context, model engine.Predictor, v features.Vector) (Pricing, error) {
	if len(v.Values) != len(v.Columns) {
		return Pricing{}, fmt.Errorf("%w: vector has %d values for %d columns", ErrInference, len(v.Values), len(v.Columns))
	}
	out, err := model.Predict(ctx, [][]float64{v.Values})
	if err != nil {
		return Pricing{}, fmt.Errorf("%w: %w", ErrInference, err)
	}
	if len(out) != 1 {
		return Pricing{}, fmt.Errorf("%w: model returned %d outputs for 1 row", ErrInference, len(out))
	}
	return adjust(out[0], v.Numeric[models.FieldEnginePower])
}

func adjust(logPrice, enginePower float64) (Pricing, error) {
	if math.IsNaN(logPrice) || math.IsInf(logPrice, 0) {
		return Pricing{}, fmt.Errorf("%w: model returned %v", ErrInference, logPrice)
	}
	base := InverseLog(logPrice)
	if math.IsInf(base, 0) {
		return Pricing{}, fmt.Errorf("%w: price overflow for log price %v", ErrInference, logPrice)
	}
	mult := SurchargeMultiplier(enginePower)
	return Pricing{
		LogPrice:   logPrice,
		BasePrice:  base,
		Multiplier: mult,
		Price:      base * mult,
	}, nil
}

// Estimator turns a submission into an Estimate with comparable listings.
type Estimator struct {
	builder  *features.Builder
	model    engine.Predictor
	listings []*models.Listing
	insights *InsightService
	logger   *utils.Logger
	now      func() time.Time
}

// NewEstimator wires the feature builder, the model and the reference
// listings. None of them is mutated afterwards.
func NewEstimator(builder *features.Builder, model engine.Predictor, listings []*models.Listing, logger *utils.Logger) *Estimator {
	return &Estimator{
		builder:  builder,
		model:    model,
		listings: listings,
		insights: NewInsightService(logger),
		logger:   logger,
		now:      time.Now,
	}
}

// Listings returns the reference listings.
func (e *Estimator) Listings() []*models.Listing {
	return e.listings
}

// Estimate prices one submission.
func (e *Estimator) Estimate(ctx context.Context, in models.VehicleInput) (*models.Estimate, error) {
	v := e.builder.Build(in)
	p, err := PredictPrice(ctx, e.model, v)
	if err != nil {
		e.logger.Warn("[estimator] %v", err)
		return nil, err
	}
	return e.finish(in, v, p), nil
}

// EstimateBatch prices several submissions in one model call. Malformed
// numeric values are filled with the batch median. The batch succeeds or
// fails as a whole.
func (e *Estimator) EstimateBatch(ctx context.Context, inputs []models.VehicleInput) ([]*models.Estimate, error) {
	if len(inputs) == 0 {
		return []*models.Estimate{}, nil
	}
	vs := e.builder.BuildBatch(inputs)
	rows := make([][]float64, len(vs))
	for i, v := range vs {
		rows[i] = v.Values
	}

	out, err := e.model.Predict(ctx, rows)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrInference, err)
		e.logger.Warn("[estimator] batch of %d: %v", len(inputs), err)
		return nil, err
	}
	if len(out) != len(rows) {
		return nil, fmt.Errorf("%w: model returned %d outputs for %d rows", ErrInference, len(out), len(rows))
	}

	estimates := make([]*models.Estimate, len(vs))
	for i, v := range vs {
		p, err := adjust(out[i], v.Numeric[models.FieldEnginePower])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		estimates[i] = e.finish(inputs[i], v, p)
	}
	return estimates, nil
}

func (e *Estimator) finish(in models.VehicleInput, v features.Vector, p Pricing) *models.Estimate {
	comparables := FindComparables(p.Price, e.listings)
	est := &models.Estimate{
		ID:          uuid.NewString(),
		Input:       in,
		Tokens:      v.Tokens,
		LogPrice:    p.LogPrice,
		BasePrice:   p.BasePrice,
		Multiplier:  p.Multiplier,
		Price:       p.Price,
		Imputed:     v.Imputed,
		Comparables: comparables,
		Summary:     e.insights.Generate(p.Price, comparables),
		CreatedAt:   e.now(),
	}
	if len(v.Imputed) > 0 {
		e.logger.Debug("[estimator] %s: substituted numeric fields %v", est.ID, v.Imputed)
	}
	e.logger.Info("[estimator] %s: %.0f (base %.0f ×%.3f, %d comparables)",
		est.ID, est.Price, est.BasePrice, est.Multiplier, len(comparables))
	return est
}
