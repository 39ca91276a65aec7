package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Calculator payloads, one per mode.
type roiPayload struct {
	Gain           float64 `json:"gain"`
	Cost           float64 `json:"cost"`
	ROIPercent     float64 `json:"roi_percent"`
	Interpretation string  `json:"interpretation"`
}

type yieldPayload struct {
	AnnualRent     float64 `json:"annual_rent"`
	PropertyValue  float64 `json:"property_value"`
	YieldPercent   float64 `json:"yield_percent"`
	Interpretation string  `json:"interpretation"`
}

type arithmeticPayload struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
}

// handleCalculator sniffs the input for a mode keyword and routes to
// ROI, rental yield, or plain arithmetic.
func (r *Registry) handleCalculator(ctx context.Context, input string) (any, error) {
	lower := strings.ToLower(input)
	switch {
	case strings.Contains(lower, "roi"):
		return calcROI(input)
	case strings.Contains(lower, "yield"):
		return calcYield(input)
	default:
		return calcArithmetic(input)
	}
}

// numberRe matches positive numeric literals with optional comma
// grouping. No leading minus: in "1200000-1000000" the second literal
// is a cost, not a negative gain.
var numberRe = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// extractNumbers returns the first n numeric literals in the input.
func extractNumbers(input string, n int) ([]float64, error) {
	matches := numberRe.FindAllString(input, n)
	if len(matches) < n {
		return nil, fmt.Errorf("need %d numbers, found %d", n, len(matches))
	}
	out := make([]float64, n)
	for i, m := range matches {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q: %w", m, err)
		}
		out[i] = v
	}
	return out, nil
}

// calcROI reads the first two numbers as gain (sale value) and cost
// (purchase price) and computes (gain-cost)/cost*100.
func calcROI(input string) (any, error) {
	nums, err := extractNumbers(input, 2)
	if err != nil {
		return nil, fmt.Errorf("ROI needs a gain and a cost: %w", err)
	}
	gain, cost := nums[0], nums[1]
	if cost == 0 {
		return nil, errors.New("ROI cost must be non-zero")
	}

	roi := (gain - cost) / cost * 100
	if math.IsNaN(roi) || math.IsInf(roi, 0) {
		return nil, errors.New("ROI result is not a finite number")
	}
	return roiPayload{
		Gain:           gain,
		Cost:           cost,
		ROIPercent:     round2(roi),
		Interpretation: interpretROI(roi),
	}, nil
}

func interpretROI(roi float64) string {
	switch {
	case roi > 20:
		return "Excellent ROI - Highly profitable investment"
	case roi > 15:
		return "Good ROI - Solid investment opportunity"
	case roi > 10:
		return "Moderate ROI - Decent returns"
	case roi > 5:
		return "Low ROI - Consider other options"
	default:
		return "Poor ROI - Not recommended"
	}
}

// calcYield reads the first two numbers as annual rent and property
// value and computes annualRent/propertyValue*100.
func calcYield(input string) (any, error) {
	nums, err := extractNumbers(input, 2)
	if err != nil {
		return nil, fmt.Errorf("rental yield needs annual rent and property value: %w", err)
	}
	rent, value := nums[0], nums[1]
	if value == 0 {
		return nil, errors.New("property value must be non-zero")
	}

	y := rent / value * 100
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return nil, errors.New("yield result is not a finite number")
	}
	return yieldPayload{
		AnnualRent:     rent,
		PropertyValue:  value,
		YieldPercent:   round2(y),
		Interpretation: interpretYield(y),
	}, nil
}

func interpretYield(y float64) string {
	switch {
	case y > 8:
		return "Excellent rental yield - Strong income potential"
	case y > 6:
		return "Good rental yield - Healthy returns"
	case y > 4:
		return "Moderate rental yield - Average returns"
	case y > 2:
		return "Low rental yield - Below average"
	default:
		return "Poor rental yield - Consider alternatives"
	}
}

// calcArithmetic sanitizes the input down to the characters the
// evaluator understands and evaluates it.
func calcArithmetic(input string) (any, error) {
	expr := sanitizeExpression(input)
	if expr == "" {
		return nil, errors.New("nothing to calculate")
	}

	res, err := evalExpr(expr)
	if err != nil {
		return nil, fmt.Errorf("calculate %q: %w", expr, err)
	}
	if math.IsNaN(res) || math.IsInf(res, 0) {
		return nil, errors.New("expression result is not a finite number")
	}
	return arithmeticPayload{Expression: expr, Result: res}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
