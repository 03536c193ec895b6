package evaluate

import "math"

// Confusion counts per-(document, tag) decisions of one fold.
type Confusion struct {
	TP, FP, TN, FN int
}

// Add merges another confusion matrix.
func (c *Confusion) Add(o Confusion) {
	c.TP += o.TP
	c.FP += o.FP
	c.TN += o.TN
	c.FN += o.FN
}

// Record counts one decision.
func (c *Confusion) Record(match, shouldMatch bool) {
	switch {
	case match && shouldMatch:
		c.TP++
	case match:
		c.FP++
	case shouldMatch:
		c.FN++
	default:
		c.TN++
	}
}

// Precision is NaN when nothing matched.
func (c Confusion) Precision() float64 { return float64(c.TP) / float64(c.TP+c.FP) }

// Recall is NaN when nothing should have matched.
func (c Confusion) Recall() float64 { return float64(c.TP) / float64(c.TP+c.FN) }

// FBeta treats recall as beta times as important as precision; beta < 1 favours precision.
// The result is NaN when precision and recall are both zero or undefined.
func (c Confusion) FBeta(beta float64) float64 {
	p, r := c.Precision(), c.Recall()
	b2 := beta * beta
	return (1 + b2) * (p * r) / (b2*p + r)
}

// meanIgnoringNaN averages the finite values; zero when there are none.
func meanIgnoringNaN(xs []float64) (mean float64, n int) {
	var sum float64
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		sum += x
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}
