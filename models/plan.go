package models

import (
	"fmt"
	"regexp"
)

var zipCodePattern = regexp.MustCompile(`^\d{5}$`)

// ValidationError reports a single invalid request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// HousePurchaseRequest is the body of POST /plan-home-purchase.
type HousePurchaseRequest struct {
	Income            float64 `json:"income"`
	TotalMonthlyDebt  float64 `json:"total_monthly_debt"`
	TotalLiquidAssets float64 `json:"total_liquid_assets"`
	ZipCode           string  `json:"zip_code"`
	CreditScore       int     `json:"credit_score"`
	UserInput         string  `json:"user_input,omitempty"`
	Model             string  `json:"model,omitempty"`
}

// Validate checks the request against the schema and pins the model field to
// the configured identifier. An empty model defaults to the configured one;
// anything else must match it exactly.
func (r *HousePurchaseRequest) Validate(configuredModel string) error {
	if r.Income < 0 {
		return &ValidationError{Field: "income", Message: "must not be negative"}
	}
	if r.TotalMonthlyDebt < 0 {
		return &ValidationError{Field: "total_monthly_debt", Message: "must not be negative"}
	}
	if r.TotalLiquidAssets < 0 {
		return &ValidationError{Field: "total_liquid_assets", Message: "must not be negative"}
	}
	if !zipCodePattern.MatchString(r.ZipCode) {
		return &ValidationError{Field: "zip_code", Message: "must be exactly 5 digits"}
	}
	if r.CreditScore < 300 || r.CreditScore > 850 {
		return &ValidationError{Field: "credit_score", Message: "must be between 300 and 850"}
	}
	if r.Model == "" {
		r.Model = configuredModel
	} else if r.Model != configuredModel {
		return &ValidationError{Field: "model", Message: fmt.Sprintf("must be %q", configuredModel)}
	}
	return nil
}

// RetirementRequest is the body of POST /plan-retirement.
type RetirementRequest struct {
	CurrentAge                      int     `json:"current_age"`
	RetirementAge                   int     `json:"retirement_age"`
	CurrentSavings                  float64 `json:"current_savings"`
	CurrentInvestments              float64 `json:"current_investments"`
	SupplementalRetirementIncome    float64 `json:"supplemental_retirement_income"`
	AnnualIncome                    float64 `json:"annual_income"`
	DesiredAnnualIncomeInRetirement float64 `json:"desired_annual_income_in_retirement"`
	UserInput                       string  `json:"user_input,omitempty"`
	Model                           string  `json:"model,omitempty"`
}

func (r *RetirementRequest) Validate(configuredModel string) error {
	if r.CurrentAge <= 0 {
		return &ValidationError{Field: "current_age", Message: "must be positive"}
	}
	if r.RetirementAge <= r.CurrentAge {
		return &ValidationError{Field: "retirement_age", Message: "must be greater than current_age"}
	}
	for field, value := range map[string]float64{
		"current_savings":                     r.CurrentSavings,
		"current_investments":                 r.CurrentInvestments,
		"supplemental_retirement_income":      r.SupplementalRetirementIncome,
		"annual_income":                       r.AnnualIncome,
		"desired_annual_income_in_retirement": r.DesiredAnnualIncomeInRetirement,
	} {
		if value < 0 {
			return &ValidationError{Field: field, Message: "must not be negative"}
		}
	}
	if r.Model == "" {
		r.Model = configuredModel
	} else if r.Model != configuredModel {
		return &ValidationError{Field: "model", Message: fmt.Sprintf("must be %q", configuredModel)}
	}
	return nil
}
