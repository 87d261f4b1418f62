package identity

const (
	chromeWindowsUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	firefoxLinuxUA  = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	safariMacUA     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_2) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15"
	safariIPhoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1"
	androidTVUA     = "Dalvik/2.1.0 (Linux; U; Android 11; Android TV Build/RTT0.210618.002)"
	vlcUA           = "VLC/3.0.20 LibVLC/3.0.20"
)

// DefaultProfiles returns the built-in identity profiles
func DefaultProfiles() []Profile {
	return []Profile{
		{
			Name: "Windows Chrome",
			Headers: map[string]string{
				"User-Agent":                chromeWindowsUA,
				"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
				"Cache-Control":             "no-cache",
				"Connection":                "keep-alive",
				"DNT":                       "1",
				"Pragma":                    "no-cache",
				"Upgrade-Insecure-Requests": "1",
				"Sec-Fetch-Dest":            "document",
				"Sec-Fetch-Mode":            "navigate",
				"Sec-Fetch-Site":            "none",
				"Sec-Fetch-User":            "?1",
			},
			AcceptLanguageCandidates: []string{"tr-TR", "tr", "en-US", "en"},
			PortRange:                PortRange{Min: 49152, Max: 65535},
		},
		{
			Name: "Linux Firefox",
			Headers: map[string]string{
				"User-Agent":     firefoxLinuxUA,
				"Accept":         "*/*",
				"Connection":     "keep-alive",
				"Sec-Fetch-Dest": "empty",
				"Sec-Fetch-Mode": "cors",
				"Sec-Fetch-Site": "cross-site",
			},
			AcceptLanguageCandidates: []string{"en-US", "en", "de-DE"},
			PortRange:                PortRange{Min: 32768, Max: 60999},
		},
		{
			Name: "macOS Safari",
			Headers: map[string]string{
				"User-Agent": safariMacUA,
				"Accept":     "*/*",
				"Connection": "keep-alive",
			},
			AcceptLanguageCandidates: []string{"en-US", "fr-FR", "en"},
			PortRange:                PortRange{Min: 49152, Max: 65535},
		},
		{
			Name: "iPhone Safari",
			Headers: map[string]string{
				"User-Agent": safariIPhoneUA,
				"Accept":     "*/*",
				"Connection": "keep-alive",
			},
			PortRange: PortRange{Min: 49152, Max: 65535},
		},
		{
			Name: "Android TV",
			Headers: map[string]string{
				"User-Agent": androidTVUA,
				"Accept":     "*/*",
				"Connection": "Keep-Alive",
			},
			AcceptLanguageCandidates: []string{"tr-TR", "tr", "en-US", "en"},
			PortRange:                PortRange{Min: 32768, Max: 61000},
		},
		{
			Name: "VLC",
			Headers: map[string]string{
				"User-Agent": vlcUA,
				"Accept":     "*/*",
			},
			PortRange: PortRange{Min: 1024, Max: 65535},
		},
	}
}
