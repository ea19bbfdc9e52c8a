package consensus

import (
	"time"

	"docverify/internal/verification/facts"
)

func mustDate(s string) time.Time {
	d, err := time.Parse(facts.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}
