package strategy

import (
	"fmt"
	"math"

	"github.com/uyouii/optimal-stopping/common"
	"github.com/uyouii/optimal-stopping/config"
	"github.com/uyouii/optimal-stopping/density"
	"github.com/uyouii/optimal-stopping/model"
)

// Rule turns the cdf of the current price and the count of items still to come, the
// current one included, into a stop/continue decision against a threshold.
type Rule string

const (
	// accept iff F(p) + (1 - F(p)) / remaining > threshold
	RulePenalized Rule = config.RulePenalized
	// accept iff 1 - F(p)^remaining < threshold
	RuleTailRisk Rule = config.RuleTailRisk
)

func ParseRule(name string) (Rule, error) {
	switch Rule(name) {
	case RulePenalized, "":
		return RulePenalized, nil
	case RuleTailRisk:
		return RuleTailRisk, nil
	}
	return "", fmt.Errorf("rule %q: %w", name, common.ErrorInvalidConfig)
}

func (r Rule) Accept(cdf float64, remaining int, threshold float64) bool {
	switch r {
	case RuleTailRisk:
		return 1-math.Pow(cdf, float64(remaining)) < threshold
	default:
		return cdf+(1-cdf)/float64(remaining) > threshold
	}
}

// Decide evaluates the rule for a single item. remaining counts the current item.
func (r Rule) Decide(m density.Model, threshold, price float64, remaining int) (model.Decision, error) {
	if remaining < 1 {
		return model.Continue, fmt.Errorf("remaining %d: %w", remaining, common.ErrorInvalidRemaining)
	}
	if m == nil {
		return model.Continue, common.ErrorInvalidValue
	}
	if r.Accept(m.Cdf(price), remaining, threshold) {
		return model.Accept, nil
	}
	return model.Continue, nil
}

// Decide applies the penalized rule.
func Decide(m density.Model, threshold, price float64, remaining int) (model.Decision, error) {
	return RulePenalized.Decide(m, threshold, price, remaining)
}
