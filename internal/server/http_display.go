package server

import (
	"fmt"

	"medpassport/internal/utils"
)

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo() {
	s.displayEndpoints()
	s.displayParserInfo()
	s.displayRequestLimitInfo()
	s.displayRateLimitInfo()
}

func (s *Server) displayEndpoints() {
	fmt.Println("Available endpoints:")
	fmt.Println("  GET  /health                    - Health check")
	fmt.Println("  GET  /stats                     - Server statistics")
	fmt.Println("  POST /v1/auth/register|login    - Accounts and sessions")
	fmt.Println("  POST /v1/auth/logout            - End session (session)")
	fmt.Println("  GET  /v1/equivalency[/compare]  - Seniority equivalency table")
	fmt.Println("  GET  /v1/profile  PUT /v1/profile")
	fmt.Println("  GET|POST /v1/rotations|procedures|projects")
	fmt.Println("  POST /v1/cv/parse  POST /v1/cv/import")
	fmt.Println("  GET|POST /v1/vault  GET /v1/vault/{name}/url  GET /v1/vault/object")
	fmt.Println("  GET  /v1/export?format=csv|pdf|xlsx")
}

func (s *Server) displayParserInfo() {
	if s.deps.Parser == nil {
		return
	}
	fmt.Printf("CV parser: %s\n", s.deps.Parser.Mode())
}

// displayRequestLimitInfo shows request size limit configuration
func (s *Server) displayRequestLimitInfo() {
	if s.MaxRequestSize > 0 {
		fmt.Printf("Request size limit: %s\n", utils.FormatFileSize(s.MaxRequestSize))
	} else {
		fmt.Println("Request size limit: DISABLED")
		fmt.Println("WARNING: No request size limits configured!")
	}
	if s.MaxUploadSize > 0 {
		fmt.Printf("Upload size limit: %s\n", utils.FormatFileSize(s.MaxUploadSize))
	}
}

// displayRateLimitInfo shows rate limiting configuration
func (s *Server) displayRateLimitInfo() {
	if s.RateLimit != nil && s.RateLimit.Enabled {
		fmt.Printf("Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
		if s.RateLimit.ByUser {
			fmt.Println("  - Per user rate limiting enabled")
		}
		if s.RateLimit.ByIP {
			fmt.Println("  - Per IP address rate limiting enabled")
		}
	} else {
		fmt.Println("Rate limiting: DISABLED")
		fmt.Println("WARNING: No rate limiting configured!")
	}
}
