package model

import (
	"net/url"
	"strings"

	U "multitouch/util"
)

const (
	ChannelDirect        = "Direct"
	ChannelPaidSearch    = "Paid Search"
	ChannelOrganicSearch = "Organic Search"
	ChannelSocial        = "Social"
	ChannelPaidSocial    = "Paid Social"
	ChannelEmail         = "Email"
	ChannelAffiliate     = "Affiliate"
	ChannelDisplay       = "Display"
	ChannelReferral      = "Referral"
	// Used on reports for credits whose touch is no longer retained.
	ChannelUnknown = "Unknown"
)

type channelMediumRule struct {
	Channel string
	Mediums []string
}

// Evaluated in order, first match wins.
var defaultChannelMediumRules = []channelMediumRule{
	{Channel: ChannelPaidSearch, Mediums: []string{"cpc", "ppc", "paid", "paidsearch"}},
	{Channel: ChannelDisplay, Mediums: []string{"display", "banner", "cpm"}},
	{Channel: ChannelSocial, Mediums: []string{"social", "social-media", "social-paid"}},
	{Channel: ChannelEmail, Mediums: []string{"email", "e-mail", "newsletter"}},
	{Channel: ChannelAffiliate, Mediums: []string{"affiliate", "partner", "referral"}},
	{Channel: ChannelOrganicSearch, Mediums: []string{"organic"}},
}

var searchEngineSources = []string{"google", "bing", "yahoo", "duckduckgo", "baidu", "yandex", "ecosia", "ask"}

var socialNetworkSources = []string{"facebook", "fb", "instagram", "linkedin", "twitter", "x",
	"pinterest", "reddit", "tiktok", "youtube", "quora", "snapchat"}

// Matched as substrings of the referrer host.
var searchEngineDomains = []string{"google.", "bing.", "yahoo.", "duckduckgo.", "baidu.", "yandex.", "ecosia."}

var socialDomains = []string{"facebook.", "instagram.", "linkedin.", "twitter.", "pinterest.", "reddit.",
	"tiktok.", "youtube.", "quora.", "snapchat."}

// Short link hosts are too short for substring matching, e.g. t.co in microsoft.com.
var socialShortHosts = []string{"t.co", "x.com", "lnkd.in", "fb.me"}

// GetChannelGroup - Maps the utm parameters and referrer of a touch to a channel group.
func GetChannelGroup(referrer string, utm UTMParams) string {
	medium := strings.ToLower(strings.TrimSpace(utm.Medium))
	source := strings.ToLower(strings.TrimSpace(utm.Source))

	if medium != "" {
		for _, rule := range defaultChannelMediumRules {
			if !U.StringValueIn(medium, rule.Mediums) {
				continue
			}

			if rule.Channel == ChannelSocial && strings.Contains(source, "paid") {
				return ChannelPaidSocial
			}
			return rule.Channel
		}
	}

	if source != "" {
		if U.StringValueIn(source, searchEngineSources) {
			return ChannelOrganicSearch
		}
		if U.StringValueIn(source, socialNetworkSources) {
			return ChannelSocial
		}
	}

	if strings.TrimSpace(referrer) == "" {
		return ChannelDirect
	}

	host := getReferrerHost(referrer)
	if U.IsContainsAnySubString(host, searchEngineDomains...) {
		return ChannelOrganicSearch
	}
	if U.IsContainsAnySubString(host, socialDomains...) || isHostIn(host, socialShortHosts) {
		return ChannelSocial
	}

	return ChannelReferral
}

// getReferrerHost returns the lower cased host of the referrer,
// falls back to the raw referrer when it is not a parsable url.
func getReferrerHost(referrer string) string {
	referrer = strings.ToLower(strings.TrimSpace(referrer))

	parsed, err := url.Parse(referrer)
	if err == nil && parsed.Host != "" {
		return parsed.Hostname()
	}

	// Referrers without scheme, i.e. www.google.com/search
	parsed, err = url.Parse("http://" + referrer)
	if err == nil && parsed.Host != "" {
		return parsed.Hostname()
	}
	return referrer
}

func isHostIn(host string, hosts []string) bool {
	for _, h := range hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
