package defaults

// UserAgents is the pool a fresh User-Agent is drawn from for every request.
var UserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
}

// TLSProfiles names the ClientHello profiles a session may impersonate.
// Names resolve to uTLS ClientHello IDs in pkg/fingerprint.
var TLSProfiles = []string{
	"chrome120",
	"chrome119",
	"chrome110",
	"chrome107",
	"safari17_0",
	"safari15_5",
	"edge99",
}

// SessionHeaders are sent with every request of a session. Accept-Encoding is
// left to the transport so gzip bodies are decoded transparently.
var SessionHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "es-ES,es;q=0.9,en;q=0.8",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Cache-Control":             "max-age=0",
}

// StaticExtensions are path suffixes that never lead to further pages.
var StaticExtensions = []string{
	// images
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico", ".bmp",
	// styles, scripts, fonts
	".css", ".js", ".woff", ".woff2", ".ttf", ".eot", ".otf",
	// documents
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	// archives
	".zip", ".rar", ".tar", ".gz", ".7z",
	// media
	".mp3", ".mp4", ".avi", ".mov", ".wmv", ".webm", ".ogg",
	// feeds and manifests
	".xml", ".rss", ".atom", ".webmanifest", ".manifest",
}
