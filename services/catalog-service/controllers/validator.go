package controllers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/yashrajoria/vm-marketplace/services/catalog-service/repository"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	MaxUploadSize   = 10 << 20
)

// ListingQueryParams are the query parameters of GET /vms.
type ListingQueryParams struct {
	Skip     int      `form:"skip,default=0" validate:"min=0"`
	Limit    int      `form:"limit,default=10" validate:"min=1,max=100"`
	MinPrice *float64 `form:"min_price" validate:"omitempty,min=0"`
	MaxPrice *float64 `form:"max_price" validate:"omitempty,min=0"`
	OS       string   `form:"os" validate:"max=100"`
	Provider string   `form:"provider" validate:"max=100"`
	CPU      int      `form:"cpu" validate:"min=0"`
	RAM      int      `form:"ram" validate:"min=0"`
	Status   string   `form:"status" validate:"omitempty,oneof=available sold reserved maintenance"`
	Search   string   `form:"search" validate:"max=100"`
	Sort     string   `form:"sort" validate:"omitempty,oneof=featured price-low price-high newest"`
}

// RequestValidator handles all input validation
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})
	return &RequestValidator{validate: v}
}

// Struct validates s and turns the first failure into a client-facing message.
func (rv *RequestValidator) Struct(s interface{}) error {
	err := rv.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return errors.New(describe(verrs[0]))
	}
	return err
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("invalid %s", field)
	}
}

// ParseListingQuery binds and validates the listing query string.
func (rv *RequestValidator) ParseListingQuery(c *gin.Context) (repository.ListingQuery, error) {
	var params ListingQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return repository.ListingQuery{}, errors.New("invalid query parameters")
	}
	if err := rv.Struct(params); err != nil {
		return repository.ListingQuery{}, err
	}
	if params.MinPrice != nil && params.MaxPrice != nil && *params.MinPrice > *params.MaxPrice {
		return repository.ListingQuery{}, errors.New("min_price must not exceed max_price")
	}

	sort := params.Sort
	if sort == "" {
		sort = repository.SortFeatured
	}
	return repository.ListingQuery{
		Filter: repository.ListingFilter{
			MinPrice: params.MinPrice,
			MaxPrice: params.MaxPrice,
			OS:       strings.TrimSpace(params.OS),
			Provider: strings.TrimSpace(params.Provider),
			MinCPU:   params.CPU,
			MinRAM:   params.RAM,
			Status:   params.Status,
			Search:   strings.TrimSpace(params.Search),
		},
		Sort:  sort,
		Skip:  params.Skip,
		Limit: params.Limit,
	}, nil
}

// ParsePage reads skip/limit for secondary lists such as reviews.
func (rv *RequestValidator) ParsePage(c *gin.Context) (int, int, error) {
	var page struct {
		Skip  int `form:"skip,default=0" validate:"min=0"`
		Limit int `form:"limit,default=10" validate:"min=1,max=100"`
	}
	if err := c.ShouldBindQuery(&page); err != nil {
		return 0, 0, errors.New("invalid pagination parameters")
	}
	if err := rv.Struct(page); err != nil {
		return 0, 0, err
	}
	return page.Skip, page.Limit, nil
}

// ParseID validates a uuid path parameter.
func ParseID(c *gin.Context, name string) (string, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return "", false
	}
	return id.String(), true
}
