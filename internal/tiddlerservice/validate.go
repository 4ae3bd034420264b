package tiddlerservice

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tiddlyhal/internal/apperr"
	"github.com/starford/tiddlyhal/internal/filter"
	"github.com/starford/tiddlyhal/internal/models"
)

const maxNameLength = 255

var printable = validation.By(func(value any) error {
	s, _ := value.(string)
	if strings.IndexFunc(s, unicode.IsControl) >= 0 {
		return errors.New("must not contain control characters")
	}
	return nil
})

var compiles = validation.By(func(value any) error {
	s, _ := value.(string)
	_, err := filter.Compile(s)
	return err
})

func validateName(what, name string) error {
	err := validation.Validate(name,
		validation.Required,
		validation.RuneLength(1, maxNameLength),
		printable,
	)
	if err != nil {
		return fmt.Errorf("tiddlerservice: %s name: %v: %w", what, err, apperr.ErrInvalidInput)
	}
	return nil
}

func validateQuery(q string) error {
	if err := validation.Validate(q, validation.Required); err != nil {
		return fmt.Errorf("tiddlerservice: search query: %v: %w", err, apperr.ErrInvalidInput)
	}
	return nil
}

type lineRules models.RecipeLine

func (l lineRules) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Bag, validation.Required, validation.RuneLength(1, maxNameLength), printable),
		validation.Field(&l.Filter, compiles),
	)
}

func validateRecipe(rc models.Recipe) error {
	if err := validateName("recipe", rc.Name); err != nil {
		return err
	}
	for i, line := range rc.Lines {
		if err := lineRules(line).Validate(); err != nil {
			return fmt.Errorf("tiddlerservice: recipe line %d: %v: %w", i, err, apperr.ErrInvalidInput)
		}
	}
	return nil
}
