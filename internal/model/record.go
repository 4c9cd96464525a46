// Package model defines data structures used throughout the application.
package model

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validation errors for Record and RecordPatch.
var (
	ErrInvalidRecordID = errors.New("record id must be positive")
	ErrEmptyTitle      = errors.New("title cannot be empty")
	ErrTitleTooLong    = errors.New("title cannot exceed 255 characters")
	ErrNegativePrice   = errors.New("price cannot be negative")
	ErrDescriptionLong = errors.New("description cannot exceed 4000 characters")
	ErrInvalidImage    = errors.New("image must be a valid URL")
	ErrEmptyPatch      = errors.New("patch must set at least one field")
)

// Validation constants.
const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 4000
)

var validate = validator.New()

// Rating is the aggregated customer rating of a record.
type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

// Record is a catalog entry as served by the catalog service.
// Records are treated as immutable values; edits produce a new Record.
type Record struct {
	ID          int     `json:"id" validate:"gt=0"`
	Title       string  `json:"title" validate:"required,max=255"`
	Price       float64 `json:"price" validate:"gte=0"`
	Description string  `json:"description" validate:"max=4000"`
	Category    string  `json:"category"`
	Image       string  `json:"image" validate:"omitempty,url"`
	Rating      *Rating `json:"rating,omitempty"`
}

// Validate checks if the Record has valid field values.
func (r *Record) Validate() error {
	if err := validate.Struct(r); err != nil {
		return translate(err)
	}
	return nil
}

// RecordPatch carries a partial update. Nil fields are left untouched.
type RecordPatch struct {
	Title       *string  `json:"title,omitempty" validate:"omitempty,max=255"`
	Price       *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=4000"`
	Category    *string  `json:"category,omitempty"`
	Image       *string  `json:"image,omitempty" validate:"omitempty,url"`
}

// IsEmpty reports whether the patch sets no field at all.
func (p RecordPatch) IsEmpty() bool {
	return p.Title == nil &&
		p.Price == nil &&
		p.Description == nil &&
		p.Category == nil &&
		p.Image == nil
}

// Validate checks the provided fields of the patch.
func (p *RecordPatch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}

	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return ErrEmptyTitle
	}

	if p.Price != nil && *p.Price < 0 {
		return ErrNegativePrice
	}

	if err := validate.Struct(p); err != nil {
		return translate(err)
	}

	return nil
}

// Apply returns a copy of r with every provided field of the patch applied.
func (p RecordPatch) Apply(r Record) Record {
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Price != nil {
		r.Price = *p.Price
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	if p.Image != nil {
		r.Image = *p.Image
	}
	return r
}

// translate maps the first validator failure onto a package sentinel.
func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	switch fe.Field() {
	case "ID":
		return ErrInvalidRecordID
	case "Title":
		if fe.Tag() == "required" {
			return ErrEmptyTitle
		}
		return ErrTitleTooLong
	case "Price":
		return ErrNegativePrice
	case "Description":
		return ErrDescriptionLong
	case "Image":
		return ErrInvalidImage
	default:
		return err
	}
}
