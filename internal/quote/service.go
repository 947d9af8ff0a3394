package quote

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/richxcame/trip-quote/internal/fare"
	"github.com/richxcame/trip-quote/internal/geocoding"
	"github.com/richxcame/trip-quote/internal/routing"
	pkgerrors "github.com/richxcame/trip-quote/pkg/errors"
	"github.com/richxcame/trip-quote/pkg/eventbus"
	"github.com/richxcame/trip-quote/pkg/geo"
	"github.com/richxcame/trip-quote/pkg/logger"
	"github.com/richxcame/trip-quote/pkg/tracing"
	"github.com/richxcame/trip-quote/pkg/validation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const eventSource = "quote-service"

// Dependencies are the collaborators shared by every session's pipeline
type Dependencies struct {
	Geocoder     geocoding.Geocoder
	Router       routing.Router
	Estimator    fare.Estimator
	RouteOptions routing.Options
	// Publisher is optional; quote events are skipped when nil
	Publisher eventbus.Publisher
}

// Service runs the geocode, route and fare pipeline for one session and
// keeps the last successful quote.
type Service struct {
	deps    Dependencies
	last    atomic.Pointer[Result]
	partial atomic.Pointer[routing.Result]
	now     func() time.Time
}

// NewService creates a pipeline with empty state
func NewService(deps Dependencies) *Service {
	return &Service{
		deps: deps,
		now:  time.Now,
	}
}

// LastQuote returns the most recent successful quote
func (s *Service) LastQuote() (*Result, bool) {
	r := s.last.Load()
	return r, r != nil
}

// LastPartialRoute returns the route computed by the last run whose fare stage failed
func (s *Service) LastPartialRoute() (*routing.Result, bool) {
	r := s.partial.Load()
	return r, r != nil
}

// Clear drops all retained state
func (s *Service) Clear() {
	s.last.Store(nil)
	s.partial.Store(nil)
}

// Quote runs the pipeline. The last quote is replaced only when every stage
// succeeds; the partial route only ever describes the current run.
func (s *Service) Quote(ctx context.Context, req TripRequest) (*Result, *Failure) {
	s.partial.Store(nil)

	pickupTime, failure := s.validate(ctx, req)
	if failure != nil {
		return nil, s.fail(ctx, failure)
	}

	pickup, dropoff, failure := s.locate(ctx, req)
	if failure != nil {
		return nil, s.fail(ctx, failure)
	}

	route, failure := s.route(ctx, pickup, dropoff)
	if failure != nil {
		return nil, s.fail(ctx, failure)
	}

	money, failure := s.estimate(ctx, fare.Trip{
		DistanceMeters:  route.DistanceMeters,
		DurationSeconds: route.DurationSeconds,
		PassengerCount:  req.PassengerCount,
		PickupTime:      pickupTime,
		Pickup:          pickup,
		Dropoff:         dropoff,
	})
	if failure != nil {
		s.partial.Store(route)
		return nil, s.fail(ctx, failure)
	}

	result := &Result{
		Pickup:         req.Pickup,
		Dropoff:        req.Dropoff,
		PickupCoord:    pickup,
		DropoffCoord:   dropoff,
		Route:          route,
		DistanceKm:     route.DistanceKm(),
		DurationMin:    route.DurationMinutes(),
		Fare:           money.Amount,
		Currency:       money.Currency,
		PassengerCount: req.PassengerCount,
		PickupTime:     req.PickupTime,
		ComputedAt:     s.now().UTC(),
	}

	s.last.Store(result)
	s.partial.Store(nil)
	quotesTotal.WithLabelValues("success").Inc()

	logger.WithContext(ctx).Info("quote computed",
		zap.Float64("distance_km", result.DistanceKm),
		zap.Float64("duration_min", result.DurationMin),
		zap.Float64("fare", result.Fare),
		zap.String("currency", result.Currency),
	)
	s.publishComputed(ctx, result)

	return result, nil
}

func (s *Service) validate(ctx context.Context, req TripRequest) (time.Time, *Failure) {
	_, span := tracing.StartStage(ctx, string(StageValidation))

	pickupTime, err := req.Validate()
	if err != nil {
		f := &Failure{Stage: StageValidation, Reason: ReasonInvalidRequest, Message: err.Error(), Err: err}
		var verr *validation.ValidationError
		if errors.As(err, &verr) {
			f.Fields = verr.Errors
		}
		tracing.EndStage(span, err, string(f.Reason))
		return time.Time{}, f
	}

	tracing.EndStage(span, nil, "")
	return pickupTime, nil
}

// locate resolves both endpoints concurrently. The first failure cancels the other lookup.
func (s *Service) locate(ctx context.Context, req TripRequest) (geo.Coordinate, geo.Coordinate, *Failure) {
	ctx, span := tracing.StartStage(ctx, string(StageGeocoding))
	start := time.Now()
	defer func() { quoteStageDuration.WithLabelValues(string(StageGeocoding)).Observe(time.Since(start).Seconds()) }()

	var pickup, dropoff geo.Coordinate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.resolve(gctx, "pickup", req.Pickup)
		pickup = c
		return err
	})
	g.Go(func() error {
		c, err := s.resolve(gctx, "dropoff", req.Dropoff)
		dropoff = c
		return err
	})

	if err := g.Wait(); err != nil {
		f := &Failure{
			Stage:   StageGeocoding,
			Reason:  geocodingReason(err),
			Message: err.Error(),
			Err:     err,
		}
		tracing.EndStage(span, err, string(f.Reason))
		return geo.Coordinate{}, geo.Coordinate{}, f
	}

	span.SetAttributes(tracing.CoordinateAttributes("quote.pickup", pickup)...)
	span.SetAttributes(tracing.CoordinateAttributes("quote.dropoff", dropoff)...)
	tracing.EndStage(span, nil, "")
	return pickup, dropoff, nil
}

func (s *Service) resolve(ctx context.Context, endpoint string, loc Location) (geo.Coordinate, error) {
	if loc.IsCoordinate() {
		return *loc.Coordinate, nil
	}

	logger.WithContext(ctx).Debug("geocoding endpoint", zap.String("endpoint", endpoint))
	c, err := s.deps.Geocoder.Resolve(ctx, loc.Query)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("%s: %w", endpoint, err)
	}
	return c, nil
}

func (s *Service) route(ctx context.Context, pickup, dropoff geo.Coordinate) (*routing.Result, *Failure) {
	ctx, span := tracing.StartStage(ctx, string(StageRouting))
	start := time.Now()
	defer func() { quoteStageDuration.WithLabelValues(string(StageRouting)).Observe(time.Since(start).Seconds()) }()

	logger.WithContext(ctx).Debug("routing", zap.Stringer("from", pickup), zap.Stringer("to", dropoff))
	route, err := s.deps.Router.Route(ctx, pickup, dropoff, s.deps.RouteOptions)
	if err != nil {
		f := &Failure{Stage: StageRouting, Reason: routingReason(err), Message: err.Error(), Err: err}
		tracing.EndStage(span, err, string(f.Reason))
		return nil, f
	}

	tracing.EndStage(span, nil, "")
	return route, nil
}

func (s *Service) estimate(ctx context.Context, trip fare.Trip) (fare.Money, *Failure) {
	ctx, span := tracing.StartStage(ctx, string(StageFareEstimation))
	start := time.Now()
	defer func() {
		quoteStageDuration.WithLabelValues(string(StageFareEstimation)).Observe(time.Since(start).Seconds())
	}()

	logger.WithContext(ctx).Debug("estimating fare",
		zap.String("strategy", s.deps.Estimator.Name()),
		zap.Int("passengers", trip.PassengerCount),
	)
	money, err := s.deps.Estimator.Estimate(ctx, trip)
	if err != nil {
		f := &Failure{Stage: StageFareEstimation, Reason: fareReason(err), Message: err.Error(), Err: err}
		tracing.EndStage(span, err, string(f.Reason))
		return fare.Money{}, f
	}

	tracing.EndStage(span, nil, "")
	return money, nil
}

// fail records a failure in logs, metrics and events before it is returned
func (s *Service) fail(ctx context.Context, f *Failure) *Failure {
	quotesTotal.WithLabelValues("failure").Inc()
	quoteFailuresTotal.WithLabelValues(string(f.Stage), string(f.Reason)).Inc()

	logger.WithContext(ctx).Warn("quote failed",
		zap.String("stage", string(f.Stage)),
		zap.String("reason", string(f.Reason)),
		zap.String("message", f.Message),
	)
	pkgerrors.AddStageBreadcrumb(ctx, string(f.Stage), string(f.Reason))

	// an upstream answering garbage is a bug somewhere, not a user error
	if f.Reason == ReasonInvalidResponse {
		pkgerrors.CaptureErrorWithContext(ctx, f, map[string]interface{}{
			"stage":  string(f.Stage),
			"reason": string(f.Reason),
		})
	}

	s.publishFailed(ctx, f)
	return f
}

func (s *Service) publishComputed(ctx context.Context, r *Result) {
	s.publish(ctx, eventbus.SubjectQuoteComputed, eventbus.QuoteComputedData{
		SessionID:        logger.SessionIDFromContext(ctx),
		PickupQuery:      r.Pickup.Query,
		DropoffQuery:     r.Dropoff.Query,
		PickupLatitude:   r.PickupCoord.Latitude,
		PickupLongitude:  r.PickupCoord.Longitude,
		DropoffLatitude:  r.DropoffCoord.Latitude,
		DropoffLongitude: r.DropoffCoord.Longitude,
		DistanceKm:       r.DistanceKm,
		DurationMin:      r.DurationMin,
		Fare:             r.Fare,
		Currency:         r.Currency,
		PassengerCount:   r.PassengerCount,
		PickupTime:       r.PickupTime,
		ComputedAt:       r.ComputedAt,
	})
}

func (s *Service) publishFailed(ctx context.Context, f *Failure) {
	s.publish(ctx, eventbus.SubjectQuoteFailed, eventbus.QuoteFailedData{
		SessionID: logger.SessionIDFromContext(ctx),
		Stage:     string(f.Stage),
		Reason:    string(f.Reason),
		Message:   f.Message,
		FailedAt:  s.now().UTC(),
	})
}

func (s *Service) publish(ctx context.Context, subject string, data interface{}) {
	if s.deps.Publisher == nil {
		return
	}

	event, err := eventbus.NewEvent(subject, eventSource, data)
	if err == nil {
		err = s.deps.Publisher.Publish(ctx, subject, event)
	}
	if err != nil {
		logger.WithContext(ctx).Warn("failed to publish quote event",
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}

func geocodingReason(err error) Reason {
	reason, ok := geocoding.ReasonOf(err)
	if !ok {
		return ReasonServiceUnavailable
	}
	switch reason {
	case geocoding.ReasonNotFound:
		return ReasonNotFound
	case geocoding.ReasonInvalidResponse:
		return ReasonInvalidResponse
	default:
		return ReasonServiceUnavailable
	}
}

func routingReason(err error) Reason {
	reason, ok := routing.ReasonOf(err)
	if !ok {
		return ReasonServiceUnavailable
	}
	switch reason {
	case routing.ReasonNoPathFound:
		return ReasonNoPathFound
	case routing.ReasonInvalidResponse:
		return ReasonInvalidResponse
	default:
		return ReasonServiceUnavailable
	}
}

func fareReason(err error) Reason {
	if reason, ok := fare.ReasonOf(err); ok && reason == fare.ReasonInvalidResponse {
		return ReasonInvalidResponse
	}
	return ReasonServiceUnavailable
}
