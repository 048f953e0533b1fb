package captcha

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSiteKeyResolution(t *testing.T) {
	table := SiteKeyTable{
		Hosts: map[string]string{
			"feeder.example.com":  "feeder-key",
			"staging.example.com": "staging-key",
		},
		ProductionKey: "prod-key",
	}

	assert.Equal(t, "feeder-key", table.SiteKey("feeder.example.com"))
	assert.Equal(t, "feeder-key", table.SiteKey("Feeder.Example.com:443"))
	assert.Equal(t, "staging-key", table.SiteKey("staging.example.com"))
	assert.Equal(t, TestSiteKey, table.SiteKey("localhost:3000"))
	assert.Equal(t, TestSiteKey, table.SiteKey("127.0.0.1"))
	assert.Equal(t, TestSiteKey, table.SiteKey("[::1]:8080"))
	assert.Equal(t, "prod-key", table.SiteKey("www.feeder.example.com"))
	assert.Equal(t, "prod-key", table.SiteKey("example.org"))

	table.TestKey = "custom-test"
	assert.Equal(t, "custom-test", table.SiteKey("dev.localhost"))
}

func TestSiteKeyTableValidate(t *testing.T) {
	assert.ErrorIs(t, SiteKeyTable{}.Validate(), ErrMissingSiteKey)
	assert.NoError(t, SiteKeyTable{ProductionKey: "k"}.Validate())
}
