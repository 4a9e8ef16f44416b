// internal/form/filler.go
package form

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/regbot-cli/internal/cases"
	"github.com/xkilldash9x/regbot-cli/internal/config"
)

// ErrNoSubmitControl is returned when every submission strategy fails.
var ErrNoSubmitControl = errors.New("no submit control found")

// FieldNotFoundError reports a form field that no candidate selector could
// locate. When Fill returns it, no submission has been attempted.
type FieldNotFoundError struct {
	Field      string
	Candidates []string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field '%s' not found (tried: %s)", e.Field, strings.Join(e.Candidates, ", "))
}

// Driver is the browser surface the filler interacts with.
type Driver interface {
	WaitVisible(ctx context.Context, selector string) error
	SendKeys(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	Evaluate(ctx context.Context, js string, out any) error
}

// Filler types registration data into a form described by a Profile. All
// timeouts are fixed from configuration; there is no per-case adaptation.
type Filler struct {
	logger  *zap.Logger
	cfg     config.BrowserConfig
	profile *Profile
}

// NewFiller creates a Filler. A nil profile falls back to the defaults.
func NewFiller(cfg config.BrowserConfig, profile *Profile, logger *zap.Logger) *Filler {
	if profile == nil {
		profile = DefaultProfile()
	}
	return &Filler{
		logger:  logger.Named("form"),
		cfg:     cfg,
		profile: profile,
	}
}

// Profile exposes the active profile so the checker can share its phrase set.
func (f *Filler) Profile() *Profile {
	return f.profile
}

type fieldBinding struct {
	field string
	spec  FieldSpec
	value string
}

// Fill locates and fills the four registration fields in fixed order. The
// first field that no candidate matches aborts the fill; the caller must not
// submit after an error. A short settle pause follows the last field so
// client-side listeners can react before submission.
func (f *Filler) Fill(ctx context.Context, d Driver, tc cases.TestCase) error {
	bindings := []fieldBinding{
		{"name", f.profile.Fields.Name, tc.Name},
		{"email", f.profile.Fields.Email, tc.Email},
		{"phone", f.profile.Fields.Phone, tc.Phone},
		{"event", f.profile.Fields.Event, tc.Event},
	}

	for _, b := range bindings {
		if err := f.fillField(ctx, d, b); err != nil {
			return err
		}
	}

	return sleepCtx(ctx, f.cfg.SettleDelay)
}

// fillField tries each candidate selector under the per-field timeout.
func (f *Filler) fillField(ctx context.Context, d Driver, b fieldBinding) error {
	for _, selector := range b.spec.Selectors {
		err := f.tryCandidate(ctx, d, b, selector)
		if err == nil {
			f.logger.Debug("Filled field.", zap.String("field", b.field), zap.String("selector", selector))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Debug("Candidate selector did not match.",
			zap.String("field", b.field),
			zap.String("selector", selector),
			zap.Error(err),
		)
	}

	// Select controls sometimes render as radio or checkbox groups instead.
	if b.spec.Kind == KindSelect {
		if err := f.pickChoiceControl(ctx, d, b.value); err == nil {
			f.logger.Debug("Filled field via choice control.", zap.String("field", b.field), zap.String("value", b.value))
			return nil
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return &FieldNotFoundError{Field: b.field, Candidates: b.spec.Selectors}
}

func (f *Filler) tryCandidate(ctx context.Context, d Driver, b fieldBinding, selector string) error {
	fieldCtx, cancel := context.WithTimeout(ctx, f.cfg.FieldTimeout)
	defer cancel()

	if b.spec.Kind == KindSelect {
		return f.selectOption(fieldCtx, d, selector, b.value)
	}
	return d.SendKeys(fieldCtx, selector, b.value)
}

const selectOptionTemplate = `
	(function() {
		const el = document.querySelector('%s');
		if (!el || el.tagName !== 'SELECT') {
			return false;
		}
		const want = '%s'.trim().toLowerCase();
		for (const opt of el.options) {
			const byValue = (opt.value || '').trim().toLowerCase() === want;
			const byLabel = (opt.textContent || '').trim().toLowerCase() === want;
			if (byValue || byLabel) {
				el.value = opt.value;
				el.dispatchEvent(new Event('input', { bubbles: true }));
				el.dispatchEvent(new Event('change', { bubbles: true }));
				return true;
			}
		}
		return false;
	})();
`

// selectOption picks the option whose value or visible label matches value,
// firing the events frameworks listen for.
func (f *Filler) selectOption(ctx context.Context, d Driver, selector, value string) error {
	if err := d.WaitVisible(ctx, selector); err != nil {
		return err
	}

	script := fmt.Sprintf(selectOptionTemplate, jsEscape(selector), jsEscape(value))
	var matched bool
	if err := d.Evaluate(ctx, script, &matched); err != nil {
		return fmt.Errorf("option selection script failed: %w", err)
	}
	if !matched {
		return fmt.Errorf("no option matching '%s' in '%s'", value, selector)
	}
	return nil
}

// pickChoiceControl clicks a radio or checkbox whose value matches.
func (f *Filler) pickChoiceControl(ctx context.Context, d Driver, value string) error {
	escaped := jsEscape(value)
	selector := fmt.Sprintf(`input[type='radio'][value='%s'], input[type='checkbox'][value='%s']`, escaped, escaped)

	fieldCtx, cancel := context.WithTimeout(ctx, f.cfg.FieldTimeout)
	defer cancel()
	return d.Click(fieldCtx, selector)
}

const requestSubmitScript = `
	(function() {
		const form = document.querySelector('form');
		if (form && (form instanceof HTMLFormElement)) {
			const event = new Event('submit', { bubbles: true, cancelable: true });
			form.dispatchEvent(event);
			if (!event.defaultPrevented) {
				if (typeof form.requestSubmit === 'function') {
					form.requestSubmit();
				} else {
					form.submit();
				}
			}
			return true;
		}
		return false;
	})();
`

// SubmitForm submits the filled form. Strategy 1 clicks the first clickable
// submit candidate. Strategy 2 falls back to requesting submission on the
// first form element via script, which still honors client-side validation
// hooks.
func (f *Filler) SubmitForm(ctx context.Context, d Driver) error {
	for _, selector := range f.profile.Submit.Selectors {
		clickCtx, cancel := context.WithTimeout(ctx, f.cfg.FieldTimeout)
		err := d.Click(clickCtx, selector)
		cancel()
		if err == nil {
			f.logger.Debug("Form submitted via click.", zap.String("selector", selector))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Debug("Submit candidate not clickable.", zap.String("selector", selector), zap.Error(err))
	}

	scriptCtx, cancel := context.WithTimeout(ctx, f.cfg.FieldTimeout)
	defer cancel()

	var submitted bool
	if err := d.Evaluate(scriptCtx, requestSubmitScript, &submitted); err != nil {
		return fmt.Errorf("%w: submit script failed: %v", ErrNoSubmitControl, err)
	}
	if !submitted {
		return ErrNoSubmitControl
	}
	f.logger.Debug("Form submitted via script.")
	return nil
}

// jsEscape makes a string safe for embedding in a single-quoted JS literal.
func jsEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
