package platform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/taskbay/taskbay/internal/domain"
)

// NewTask is the author-supplied part of addTask. The attached deposit is
// passed separately, like value attached to a call.
type NewTask struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=4000"`
	Type        domain.TaskType `json:"task_type" validate:"required,oneof=FCFS AUTHOR_SELECTED"`
	Reward      int64           `json:"reward"`
}

var validate = validator.New()

// validateStruct runs tag validation and folds the failures into one
// ErrInvalidInput error.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%v: %w", err, domain.ErrInvalidInput)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", e.Field(), e.Tag()))
	}
	return fmt.Errorf("%s: %w", strings.Join(msgs, ", "), domain.ErrInvalidInput)
}

func requireCaller(actor domain.Address) error {
	if actor.IsZero() {
		return fmt.Errorf("anonymous caller: %w", domain.ErrUnauthorized)
	}
	return nil
}
