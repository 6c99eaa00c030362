package safety

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ValidationResult represents the result of a validation check
type ValidationResult struct {
	Valid   bool
	Message string
	Code    string
}

// Validator provides defensive validation methods
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePrice validates a price value for trading
func (v *Validator) ValidatePrice(price float64, symbol string) ValidationResult {
	if math.IsNaN(price) {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("invalid price for %s: price is NaN", symbol),
			Code:    "INVALID_PRICE_NAN",
		}
	}

	if math.IsInf(price, 0) {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("invalid price for %s: price is infinite", symbol),
			Code:    "INVALID_PRICE_INF",
		}
	}

	if price <= 0 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("invalid price %.8f for %s: price must be positive", price, symbol),
			Code:    "INVALID_PRICE_NEGATIVE",
		}
	}

	// Check for reasonable price bounds (prevent obvious data errors)
	if price > 1e10 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("suspicious price %.8f for %s: exceeds reasonable bounds", price, symbol),
			Code:    "PRICE_OUT_OF_BOUNDS",
		}
	}

	if price < 1e-8 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("suspicious price %.8f for %s: below reasonable bounds", price, symbol),
			Code:    "PRICE_TOO_SMALL",
		}
	}

	return ValidationResult{Valid: true}
}

// ValidateQuantity validates a quantity value for trading
func (v *Validator) ValidateQuantity(quantity float64, symbol string) ValidationResult {
	if math.IsNaN(quantity) {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("invalid quantity for %s: quantity is NaN", symbol),
			Code:    "INVALID_QUANTITY_NAN",
		}
	}

	if math.IsInf(quantity, 0) {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("invalid quantity for %s: quantity is infinite", symbol),
			Code:    "INVALID_QUANTITY_INF",
		}
	}

	if quantity <= 0 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("invalid quantity %.8f for %s: quantity must be positive", quantity, symbol),
			Code:    "INVALID_QUANTITY_NEGATIVE",
		}
	}

	if quantity > 1e12 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("suspicious quantity %.8f for %s: exceeds reasonable bounds", quantity, symbol),
			Code:    "QUANTITY_OUT_OF_BOUNDS",
		}
	}

	return ValidationResult{Valid: true}
}

// ValidateOrderValue validates the total notional of an order
func (v *Validator) ValidateOrderValue(price, quantity float64, symbol string) ValidationResult {
	if priceResult := v.ValidatePrice(price, symbol); !priceResult.Valid {
		return priceResult
	}

	if quantityResult := v.ValidateQuantity(quantity, symbol); !quantityResult.Valid {
		return quantityResult
	}

	orderValue := price * quantity

	if math.IsNaN(orderValue) || math.IsInf(orderValue, 0) {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("invalid order value for %s: calculation produced %.8f", symbol, orderValue),
			Code:    "INVALID_ORDER_VALUE",
		}
	}

	if orderValue > 1e9 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("suspicious order value $%.2f for %s: exceeds reasonable bounds", orderValue, symbol),
			Code:    "ORDER_VALUE_TOO_LARGE",
		}
	}

	if orderValue < 0.01 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("order value $%.8f for %s: below minimum reasonable value", orderValue, symbol),
			Code:    "ORDER_VALUE_TOO_SMALL",
		}
	}

	return ValidationResult{Valid: true}
}

// ValidateSymbol validates a trading symbol format
func (v *Validator) ValidateSymbol(symbol string) ValidationResult {
	if symbol == "" {
		return ValidationResult{
			Valid:   false,
			Message: "symbol cannot be empty",
			Code:    "SYMBOL_EMPTY",
		}
	}

	symbol = strings.TrimSpace(symbol)
	if len(symbol) < 2 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("symbol '%s' too short: minimum 2 characters required", symbol),
			Code:    "SYMBOL_TOO_SHORT",
		}
	}

	if len(symbol) > 20 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("symbol '%s' too long: maximum 20 characters allowed", symbol),
			Code:    "SYMBOL_TOO_LONG",
		}
	}

	// Alphanumeric only
	for _, char := range symbol {
		if !((char >= 'A' && char <= 'Z') || (char >= 'a' && char <= 'z') || (char >= '0' && char <= '9')) {
			return ValidationResult{
				Valid:   false,
				Message: fmt.Sprintf("symbol '%s' contains invalid characters: only alphanumeric allowed", symbol),
				Code:    "SYMBOL_INVALID_CHARS",
			}
		}
	}

	return ValidationResult{Valid: true}
}

// ValidateLeverage validates a leverage value against a configured cap
func (v *Validator) ValidateLeverage(leverage, maxLeverage float64) ValidationResult {
	if math.IsNaN(leverage) || math.IsInf(leverage, 0) {
		return ValidationResult{
			Valid:   false,
			Message: "leverage is not a finite number",
			Code:    "LEVERAGE_NOT_FINITE",
		}
	}

	if leverage < 1 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("leverage %.2fx below minimum 1x", leverage),
			Code:    "LEVERAGE_TOO_LOW",
		}
	}

	if leverage > maxLeverage {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("leverage %.2fx exceeds configured maximum %.2fx", leverage, maxLeverage),
			Code:    "LEVERAGE_TOO_HIGH",
		}
	}

	return ValidationResult{Valid: true}
}

// ValidateConfidence validates a signal confidence score
func (v *Validator) ValidateConfidence(confidence float64) ValidationResult {
	if math.IsNaN(confidence) {
		return ValidationResult{
			Valid:   false,
			Message: "confidence is NaN",
			Code:    "CONFIDENCE_NAN",
		}
	}

	if confidence < 0 || confidence > 1 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("confidence %.4f outside [0,1]", confidence),
			Code:    "CONFIDENCE_OUT_OF_RANGE",
		}
	}

	return ValidationResult{Valid: true}
}

// ValidateExitSizePct validates a partial-exit percentage
func (v *Validator) ValidateExitSizePct(sizePct float64) ValidationResult {
	if math.IsNaN(sizePct) {
		return ValidationResult{
			Valid:   false,
			Message: "exit size percentage is NaN",
			Code:    "EXIT_SIZE_NAN",
		}
	}

	if sizePct <= 0 || sizePct > 100 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("exit size %.2f%% outside (0,100]", sizePct),
			Code:    "EXIT_SIZE_OUT_OF_RANGE",
		}
	}

	return ValidationResult{Valid: true}
}

// ValidateBalance validates an account balance
func (v *Validator) ValidateBalance(balance float64, currency string) ValidationResult {
	if math.IsNaN(balance) {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("balance for %s is NaN", currency),
			Code:    "BALANCE_NAN",
		}
	}

	if math.IsInf(balance, 0) {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("balance for %s is infinite", currency),
			Code:    "BALANCE_INF",
		}
	}

	if balance < 0 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("balance %.8f %s cannot be negative", balance, currency),
			Code:    "BALANCE_NEGATIVE",
		}
	}

	return ValidationResult{Valid: true}
}

// ValidateTimestamp validates a timestamp for reasonable bounds
func (v *Validator) ValidateTimestamp(timestamp time.Time, context string) ValidationResult {
	now := time.Now()

	if timestamp.Before(now.AddDate(-1, 0, 0)) {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("%s timestamp %v is too old (more than 1 year ago)", context, timestamp),
			Code:    "TIMESTAMP_TOO_OLD",
		}
	}

	if timestamp.After(now.Add(time.Hour)) {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("%s timestamp %v is too far in the future", context, timestamp),
			Code:    "TIMESTAMP_FUTURE",
		}
	}

	return ValidationResult{Valid: true}
}

// SafeDivision performs division with zero-check
func (v *Validator) SafeDivision(dividend, divisor float64) (float64, error) {
	if divisor == 0 {
		return 0, fmt.Errorf("division by zero: %.8f / %.8f", dividend, divisor)
	}

	if math.IsNaN(dividend) || math.IsNaN(divisor) {
		return 0, fmt.Errorf("division with NaN: %.8f / %.8f", dividend, divisor)
	}

	if math.IsInf(dividend, 0) || math.IsInf(divisor, 0) {
		return 0, fmt.Errorf("division with infinity: %.8f / %.8f", dividend, divisor)
	}

	result := dividend / divisor

	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("division resulted in invalid value: %.8f / %.8f = %.8f",
			dividend, divisor, result)
	}

	return result, nil
}
