package httpapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfigValidateAppliesDefaults(test *testing.T) {
	test.Parallel()
	cfg := Config{SigningKey: "key"}
	require.NoError(test, cfg.Validate())
	require.Equal(test, defaultListenAddr, cfg.ListenAddr)
	require.Equal(test, defaultTokenIssuer, cfg.TokenIssuer)
	require.Equal(test, []string{defaultAllowedOrigin}, cfg.AllowedOrigins)
	require.Equal(test, defaultTokenTTL, cfg.TokenTTL)
	require.Equal(test, defaultRequestTimeout, cfg.RequestTimeout)
}

func TestConfigValidateRejectsInvalid(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name string
		cfg  Config
	}{
		{name: "missing signing key", cfg: Config{}},
		{name: "blank signing key", cfg: Config{SigningKey: "   "}},
		{name: "negative ttl", cfg: Config{SigningKey: "key", TokenTTL: -time.Minute}},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			require.Error(test, testCase.cfg.Validate())
		})
	}
}

func TestParseAllowedOrigins(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		raw      string
		expected []string
	}{
		{raw: "", expected: []string{}},
		{raw: "  ", expected: []string{}},
		{raw: "https://a.example", expected: []string{"https://a.example"}},
		{raw: " https://a.example , ,https://b.example ", expected: []string{"https://a.example", "https://b.example"}},
	}
	for _, testCase := range testCases {
		require.Equal(test, testCase.expected, ParseAllowedOrigins(testCase.raw), testCase.raw)
	}
}
