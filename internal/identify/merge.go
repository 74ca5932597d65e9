package identify

import (
	"fmt"

	"github.com/example/cattle-id/internal/classifier"
	"github.com/example/cattle-id/internal/husbandry"
	"github.com/example/cattle-id/internal/resolver"
)

// UnknownProfileError reports an identified label with no husbandry profile.
type UnknownProfileError struct {
	Label classifier.Label
}

func (e *UnknownProfileError) Error() string {
	return fmt.Sprintf("no husbandry profile registered for %s", e.Label)
}

// Merge assembles the response for result. An identified label must have a
// profile; a low-confidence result is reported as unidentified without one.
// A nil fix leaves the location out of the response.
func Merge(result resolver.Result, fix *LocationFix, profiles husbandry.Lookup) (*Response, error) {
	resp := &Response{
		CowID:      Unidentified,
		Identified: result.Identified(),
		Confidence: result.Confidence,
	}

	if fix != nil {
		if err := fix.Validate(); err != nil {
			return nil, err
		}
		loc := *fix
		resp.Location = &loc
	}

	if !result.Identified() {
		return resp, nil
	}

	if profiles == nil {
		return nil, &UnknownProfileError{Label: result.Label}
	}
	profile, ok := profiles.Get(result.Label)
	if !ok {
		return nil, &UnknownProfileError{Label: result.Label}
	}
	resp.CowID = string(result.Label)
	resp.Husbandry = &profile
	return resp, nil
}
