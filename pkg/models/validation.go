package models

import (
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Aidin1998/dexter/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// gt=0 alone lets +Inf through.
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		return isFinite(fl.Field().Float())
	})
	return v
}

// Validate checks an inbound order. An order without an id gets one assigned.
func Validate(o Order) (Order, error) {
	if err := validate.Struct(o); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return o, errors.InvalidOrder.Wrap(err)
		}
		e := errors.InvalidOrder
		for _, fe := range verrs {
			e = e.WithField(fe.Tag(), fe.Field(), fieldMessage(fe))
		}
		return o, e
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return o, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "finite":
		return "must be a finite number"
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "required":
		return "is required"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
