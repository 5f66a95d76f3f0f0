// Package validation checks flat string inputs, such as query parameters,
// against pipe-separated rules.
//
//	v := validation.Make(req.All(), validation.Rules{
//	    "lifetime": "sometimes|in:singleton,container,hierarchy,context,call",
//	    "limit":    "sometimes|integer|gte:1|lte:500",
//	})
//	if v.Fails() {
//	    res.ValidationError(v.Errors())
//	    return
//	}
//
// Supported rules: required, sometimes, integer, max, in, regex, gte, lte.
// Fields are checked in name order and stop at their first failure.
package validation
