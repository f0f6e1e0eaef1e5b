package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	app "silkyroad/src/app"

	"github.com/sirupsen/logrus"
)

type Step string

const (
	StepListings Step = "listings"
	StepOrders   Step = "orders"
	StepAssets   Step = "assets"
	StepIdentity Step = "identity"
)

type StepResult struct {
	Step  Step   `json:"step"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	err   error
}

// CascadeReport records the outcome of every step of an account deletion.
type CascadeReport struct {
	UserID string       `json:"user_id"`
	Steps  []StepResult `json:"steps"`
}

// Failed lists the steps that reported an error, in execution order.
func (r *CascadeReport) Failed() []Step {
	var failed []Step
	for _, s := range r.Steps {
		if !s.OK {
			failed = append(failed, s.Step)
		}
	}
	return failed
}

func (r *CascadeReport) record(step Step, err error) {
	result := StepResult{Step: step, OK: err == nil, err: err}
	if err != nil {
		result.Error = err.Error()
	}
	r.Steps = append(r.Steps, result)
}

// PartialCascadeError is returned when the identity was deleted but at least
// one cleanup step before it failed.
type PartialCascadeError struct {
	UserID string
	Steps  []Step
	errs   []error
}

func (e *PartialCascadeError) Error() string {
	names := make([]string, len(e.Steps))
	for i, s := range e.Steps {
		names[i] = string(s)
	}
	return fmt.Sprintf("account %s deleted with failed cleanup steps: %s", e.UserID, strings.Join(names, ", "))
}

func (e *PartialCascadeError) Unwrap() []error { return e.errs }

// Cascade removes every record and object attributable to an identity and
// then the identity itself.
type Cascade struct {
	listings   ListingStore
	orders     OrderStore
	objects    ObjectStore
	identities IdentityStore
	log        logrus.FieldLogger
}

func NewCascade(listings ListingStore, orders OrderStore, objects ObjectStore, identities IdentityStore, log logrus.FieldLogger) *Cascade {
	return &Cascade{
		listings:   listings,
		orders:     orders,
		objects:    objects,
		identities: identities,
		log:        log,
	}
}

// Run executes the four deletion steps in order. Steps before the identity
// deletion are best effort. The returned error is nil, a *PartialCascadeError,
// or the identity deletion failure.
func (c *Cascade) Run(ctx context.Context, userID string) (*CascadeReport, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, &app.ValidationError{Field: "user_id", Message: "Missing user_id"}
	}
	log := c.log.WithField("user_id", userID)
	report := &CascadeReport{UserID: userID}

	step := func(name Step, fn func() error) error {
		err := fn()
		if err != nil {
			log.WithError(err).WithField("step", name).Error("account deletion step failed")
		}
		report.record(name, err)
		return err
	}

	_ = step(StepListings, func() error { return c.listings.DeleteBySeller(ctx, userID) })
	_ = step(StepOrders, func() error { return c.orders.DeleteBySeller(ctx, userID) })
	_ = step(StepAssets, func() error { return c.deleteAssets(ctx, userID) })
	if err := step(StepIdentity, func() error { return c.identities.DeleteUser(ctx, userID) }); err != nil {
		return report, err
	}

	failed := report.Failed()
	if len(failed) > 0 {
		var errs []error
		for _, s := range report.Steps {
			if s.err != nil {
				errs = append(errs, s.err)
			}
		}
		return report, &PartialCascadeError{UserID: userID, Steps: failed, errs: errs}
	}
	log.Info("account deleted")
	return report, nil
}

// deleteAssets removes each object under the user's prefix and then the prefix
// marker. Every object is attempted even when some fail.
func (c *Cascade) deleteAssets(ctx context.Context, userID string) error {
	keys, err := c.objects.ListKeys(ctx, app.UserPrefix(userID))
	if err != nil {
		return err
	}
	marker := app.PrefixMarker(userID)
	var errs []error
	for _, key := range keys {
		if key == marker {
			continue
		}
		if err := c.objects.DeleteFile(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.objects.DeleteFile(ctx, marker); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
