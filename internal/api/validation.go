package api

import (
	"fmt"
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// nativeDecimals is the number of decimals of the chain's fee currency.
const nativeDecimals = 18

var marketRefPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,127}$`)

// registerValidators adds the custom binding tags used by request structs. A
// failure here is a programming error, so it panics while the server is built.
func registerValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		panic("api: gin binding engine is not go-playground/validator")
	}
	if err := v.RegisterValidation("market_ref", validateMarketRef); err != nil {
		panic(fmt.Sprintf("api: register market_ref validator: %v", err))
	}
	if err := v.RegisterValidation("base_units", validateBaseUnits); err != nil {
		panic(fmt.Sprintf("api: register base_units validator: %v", err))
	}
}

func validateMarketRef(fl validator.FieldLevel) bool {
	return marketRefPattern.MatchString(fl.Field().String())
}

func validateBaseUnits(fl validator.FieldLevel) bool {
	_, ok := parseBaseUnits(fl.Field().String())
	return ok
}

// parseBaseUnits accepts a positive integer amount written in decimal.
func parseBaseUnits(raw string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(raw)
	if err != nil || !d.IsInteger() || d.Sign() <= 0 {
		return decimal.Decimal{}, false
	}
	return d, true
}

// displayAmount renders a fee in the smallest unit as a native-currency amount.
func displayAmount(v int64) string {
	return decimal.New(v, -nativeDecimals).String()
}
