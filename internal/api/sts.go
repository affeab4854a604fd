package api

import (
	"encoding/xml"
	"net/http"

	"github.com/kibertoad/fauxqs/internal/fauxqs/region"
)

// handleSTS answers the one STS action fauxqs shims, per spec.md §6:
// Action=GetCallerIdentity, reporting the fixed placeholder account.
func (s *Server) handleSTS(w http.ResponseWriter, r *http.Request) {
	type result struct {
		Account string `xml:"Account"`
		Arn     string `xml:"Arn"`
		UserId  string `xml:"UserId"`
	}
	type resp struct {
		XMLName   xml.Name `xml:"GetCallerIdentityResponse"`
		Result    result   `xml:"GetCallerIdentityResult"`
		RequestID string   `xml:"ResponseMetadata>RequestId"`
	}
	writeXML(w, http.StatusOK, resp{
		Result: result{
			Account: region.AccountID,
			Arn:     "arn:aws:iam::" + region.AccountID + ":root",
			UserId:  region.AccountID,
		},
		RequestID: newRequestID(),
	})
}
