package pagination

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, Params{Page: 1, Limit: DefaultLimit}, Params{}.Normalize())
	assert.Equal(t, Params{Page: 3, Limit: MaxLimit}, Params{Page: 3, Limit: 500}.Normalize())
}

func TestOffsetAndDescribe(t *testing.T) {
	p := Params{Page: 3, Limit: 10}
	assert.Equal(t, 20, p.Offset())
	assert.Equal(t, Page{Page: 3, Limit: 10, Total: 41, TotalPages: 5}, p.Describe(41))
	assert.Equal(t, 0, p.Describe(0).TotalPages)
}

func TestFromQuery(t *testing.T) {
	got := FromQuery(url.Values{"page": {"2"}, "limit": {"abc"}})
	assert.Equal(t, Params{Page: 2, Limit: DefaultLimit}, got)
}
