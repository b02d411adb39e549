package server

import "fmt"

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo() {
	scheme := "http"
	if s.TLSConfig.Mode == "server" {
		scheme = "https"
	}
	fmt.Printf("Starting server on %s://%s:%s\n", scheme, s.Host, s.Port)

	s.displayEndpoints()
	s.displayAuthInfo()
	s.displayRequestLimitInfo()
	s.displayRateLimitInfo()
}

func (s *Server) displayEndpoints() {
	fmt.Println("Available endpoints:")
	fmt.Println("  GET  /health        - Model availability and circuit breaker state")
	fmt.Println("  GET  /stats         - Server statistics")
	fmt.Println("  POST /generate      - Generate application email and memo (requires API key)")
	fmt.Println("  POST /parse-resume  - Extract and save a resume document (requires API key)")
	fmt.Println("  GET  /resume        - Saved resume (requires API key)")
}

func (s *Server) displayAuthInfo() {
	if count := s.apiKeyCount(); count > 0 {
		fmt.Printf("API authentication: ENABLED (%d keys configured)\n", count)
		if s.Vault.Enabled && s.Vault.PollInterval > 0 {
			fmt.Printf("  - Keys refreshed from Vault every %s\n", s.Vault.PollInterval)
		}
	} else {
		fmt.Println("API authentication: DISABLED (no API keys configured)")
		fmt.Println("WARNING: API endpoints are publicly accessible!")
	}
}

func (s *Server) displayRequestLimitInfo() {
	if s.MaxRequestSize > 0 {
		fmt.Printf("Request size limit: %d bytes (%.1f MB)\n", s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024))
	} else {
		fmt.Println("Request size limit: DISABLED")
	}
}

func (s *Server) displayRateLimitInfo() {
	if !s.RateLimit.Enabled {
		fmt.Println("Rate limiting: DISABLED")
		return
	}
	fmt.Printf("Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
		s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
	if s.RateLimit.ByAPIKey {
		fmt.Println("  - Per API key rate limiting enabled")
	}
	if s.RateLimit.ByIP {
		fmt.Println("  - Per IP address rate limiting enabled")
	}
}
