package reading

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatest(t *testing.T) {
	base := time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)

	readings := []Reading{
		{SiteCode: "05568500", ParameterCode: ParamGageHeight, Value: 14.2, Time: base},
		{SiteCode: "05568500", ParameterCode: ParamGageHeight, Value: 14.5, Time: base.Add(30 * time.Minute)},
		{SiteCode: "05568500", ParameterCode: ParamGageHeight, Value: 14.3, Time: base.Add(15 * time.Minute)},
	}

	latest := Latest(readings)
	assert.NotNil(t, latest)
	assert.Equal(t, 14.5, latest.Value)
}

func TestLatestEmpty(t *testing.T) {
	assert.Nil(t, Latest(nil))
	assert.Nil(t, Latest([]Reading{}))
}

func TestAge(t *testing.T) {
	now := time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)
	r := Reading{Time: now.Add(-90 * time.Minute)}
	assert.Equal(t, 90*time.Minute, r.Age(now))
}
