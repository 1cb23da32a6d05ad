package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/seanlongden/lead-formatter-waitlist/api"
	"github.com/seanlongden/lead-formatter-waitlist/config"
	"github.com/seanlongden/lead-formatter-waitlist/waitlist"
)

const maxBodyBytes = 1 << 16

// Waitlist exported for testing purposes
type Waitlist struct {
	Service *waitlist.Service
	Config  config.Config
}

type emailRequest struct {
	Email        string `json:"email"`
	ReferralCode string `json:"referralCode"`
}

// SignupHandler adds an email to the waitlist and mails its verification link
func (wl Waitlist) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeBody(r, &req); err != nil {
		config.ErrorStatus("Invalid request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := wl.Service.Signup(ctx, waitlist.SignupInput{
		Email:        req.Email,
		ReferralCode: req.ReferralCode,
		IPAddress:    clientIP(r),
	})
	if err != nil {
		writeServiceError(w, err, "An error occurred. Please try again.")
		return
	}

	body := map[string]interface{}{
		"success": true,
		"message": "Please check your email to verify your account",
	}
	if wl.Config.IsDevelopment() {
		body["verificationUrl"] = res.VerificationURL
		body["verificationToken"] = res.VerificationToken
	}
	config.WriteJSON(w, http.StatusCreated, body)
}

// VerifyHandler consumes a verification token and redirects to the dashboard
func (wl Waitlist) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := wl.Service.Verify(ctx, r.URL.Query().Get("token"))
	if err != nil {
		writeServiceError(w, err, "Verification failed. Please try again.")
		return
	}
	http.Redirect(w, r, "/waitlist/dashboard/"+res.ReferralCode, http.StatusFound)
}

// DashboardHandler returns the referral dashboard of a verified user
func (wl Waitlist) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	referralCode := mux.Vars(r)["referralCode"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dashboard, err := wl.Service.Dashboard(ctx, referralCode)
	if err != nil {
		writeServiceError(w, err, "Failed to load dashboard")
		return
	}
	config.WriteJSON(w, http.StatusOK, dashboard)
}

// ResendLinkHandler mails a fresh verification link or the dashboard link
func (wl Waitlist) ResendLinkHandler(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeBody(r, &req); err != nil {
		config.ErrorStatus("Invalid request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := wl.Service.ResendLink(ctx, req.Email)
	if err != nil {
		writeServiceError(w, err, "Failed to send link")
		return
	}

	body := map[string]interface{}{
		"success": true,
		"message": res.Message,
	}
	if wl.Config.IsDevelopment() {
		if res.VerificationURL != "" {
			body["verificationUrl"] = res.VerificationURL
		}
		if res.DashboardURL != "" {
			body["dashboardUrl"] = res.DashboardURL
		}
	}
	config.WriteJSON(w, http.StatusOK, body)
}

// ValidateHandler reports whether a referral code belongs to a verified user
func (wl Waitlist) ValidateHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	valid, code, err := wl.Service.ValidateCode(ctx, mux.Vars(r)["referralCode"])
	if err != nil {
		zap.S().Errorw("failed to validate referral code", "error", err)
		config.WriteJSON(w, http.StatusOK, map[string]interface{}{"valid": false})
		return
	}
	config.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"valid":        valid,
		"referralCode": code,
	})
}

// StatsHandler returns the public counters and leaderboard
func (wl Waitlist) StatsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	stats, err := wl.Service.Stats(ctx)
	if err != nil {
		config.ErrorStatus("Failed to load stats", http.StatusInternalServerError, w, err)
		return
	}
	config.WriteJSON(w, http.StatusOK, stats)
}

// writeServiceError maps waitlist errors onto statuses. Anything unexpected is logged
// and answered with fallback.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var (
		validation *waitlist.ValidationError
		notFound   *waitlist.NotFoundError
		forbidden  *waitlist.ForbiddenError
		conflict   *waitlist.ConflictError
	)
	switch {
	case errors.As(err, &validation):
		config.ErrorStatus(validation.Message, http.StatusBadRequest, w, nil)
	case errors.As(err, &notFound):
		config.ErrorStatus(notFound.Message, http.StatusNotFound, w, nil)
	case errors.As(err, &forbidden):
		config.WriteJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":         forbidden.Message,
			"emailVerified": forbidden.EmailVerified,
		})
	case errors.As(err, &conflict):
		var referralCode interface{}
		if conflict.ReferralCode != "" {
			referralCode = conflict.ReferralCode
		}
		config.WriteJSON(w, http.StatusConflict, map[string]interface{}{
			"error":             "Email already registered",
			"alreadyRegistered": true,
			"emailVerified":     conflict.EmailVerified,
			"referralCode":      referralCode,
		})
	default:
		config.ErrorStatus(fallback, http.StatusInternalServerError, w, err)
	}
}

func decodeBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		// an empty body reaches validation as empty fields
		return nil
	}
	return err
}

// clientIP prefers the address set by the proxy in front of the app
func clientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
