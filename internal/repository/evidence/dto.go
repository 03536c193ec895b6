package evidence

import (
	"fmt"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/kailas-cloud/feedtag/internal/domain/bayes"
)

// recordRow is the msgpack form of a WordRecord stored as a hash field value.
type recordRow struct {
	PositiveOccurrences int64 `msgpack:"po"`
	NegativeOccurrences int64 `msgpack:"no"`
	PositiveDocs        int64 `msgpack:"pd"`
	NegativeDocs        int64 `msgpack:"nd"`
}

func encodeRecord(rec bayes.WordRecord) (string, error) {
	b, err := msgpack.Marshal(recordRow{
		PositiveOccurrences: rec.PositiveOccurrences,
		NegativeOccurrences: rec.NegativeOccurrences,
		PositiveDocs:        rec.PositiveDocs,
		NegativeDocs:        rec.NegativeDocs,
	})
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	return string(b), nil
}

func decodeRecord(s string) (bayes.WordRecord, error) {
	var row recordRow
	if err := msgpack.Unmarshal([]byte(s), &row); err != nil {
		return bayes.WordRecord{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return bayes.WordRecord{
		PositiveOccurrences: row.PositiveOccurrences,
		NegativeOccurrences: row.NegativeOccurrences,
		PositiveDocs:        row.PositiveDocs,
		NegativeDocs:        row.NegativeDocs,
	}, nil
}

func totalsToHash(t bayes.Totals) map[string]string {
	return map[string]string{
		"positive": strconv.FormatInt(t.Positive, 10),
		"negative": strconv.FormatInt(t.Negative, 10),
	}
}

func totalsFromHash(m map[string]string) (bayes.Totals, error) {
	var t bayes.Totals
	var err error
	if v := m["positive"]; v != "" {
		if t.Positive, err = strconv.ParseInt(v, 10, 64); err != nil {
			return bayes.Totals{}, fmt.Errorf("invalid positive total: %w", err)
		}
	}
	if v := m["negative"]; v != "" {
		if t.Negative, err = strconv.ParseInt(v, 10, 64); err != nil {
			return bayes.Totals{}, fmt.Errorf("invalid negative total: %w", err)
		}
	}
	return t, nil
}
