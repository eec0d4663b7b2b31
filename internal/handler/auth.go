package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hearthhq/hearth/internal/auth"
	"github.com/hearthhq/hearth/internal/email"
	"github.com/hearthhq/hearth/internal/model"
	"github.com/hearthhq/hearth/internal/store"
)

const (
	sessionCookieName = "hearth_session"
	sessionTTL        = 30 * 24 * time.Hour

	purposeLogin    = "login"
	purposeRegister = "register"
	purposeInvite   = "invite"
)

// memberColors is the palette cycled through as members join.
var memberColors = []string{"#e07a5f", "#3d405b", "#81b29a", "#f2cc8f", "#6d6875", "#457b9d"}

type AuthHandler struct {
	users      *store.UserStore
	families   *store.FamilyStore
	sessions   *store.SessionStore
	magicLinks *store.MagicLinkStore
	prefs      *store.PreferenceStore
	mail       *email.Client
	secure     bool
	logger     *slog.Logger
}

func NewAuthHandler(
	users *store.UserStore,
	families *store.FamilyStore,
	sessions *store.SessionStore,
	magicLinks *store.MagicLinkStore,
	prefs *store.PreferenceStore,
	mail *email.Client,
	baseURL string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:      users,
		families:   families,
		sessions:   sessions,
		magicLinks: magicLinks,
		prefs:      prefs,
		mail:       mail,
		secure:     strings.HasPrefix(baseURL, "https://"),
		logger:     logger,
	}
}

// Register creates a user with a fresh family and emails a sign-in link.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email      string `json:"email"`
		Name       string `json:"name"`
		FamilyName string `json:"family_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "valid email required")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}
	if req.FamilyName == "" {
		req.FamilyName = req.Name + "'s family"
	}

	existing, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("lookup user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "account already exists")
		return
	}

	user, err := h.users.Create(req.Email, req.Name)
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	family, err := h.families.Create(req.FamilyName)
	if err != nil {
		h.logger.Error("create family", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if _, err := h.families.AddMember(family.ID, user.ID, model.RoleParent, memberColors[0]); err != nil {
		h.logger.Error("add founding member", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if _, err := h.prefs.GetOrCreate(user.ID, family.ID); err != nil {
		h.logger.Error("seed preferences", "error", err)
	}

	if err := h.sendLink(req.Email, purposeRegister, nil, req.FamilyName); err != nil {
		writeError(w, http.StatusInternalServerError, "could not send sign-in email")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "check your email"})
}

// Login emails a sign-in link. The response does not reveal whether the
// account exists.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email required")
		return
	}

	user, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("lookup user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user != nil {
		if err := h.sendLink(req.Email, purposeLogin, nil, ""); err != nil {
			writeError(w, http.StatusInternalServerError, "could not send sign-in email")
			return
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "check your email"})
}

// Invite emails a join link scoped to the caller's family. Parent only.
func (h *AuthHandler) Invite(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())

	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "valid email required")
		return
	}

	family, err := h.families.GetByID(familyID)
	if err != nil || family == nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.sendLink(req.Email, purposeInvite, &familyID, family.Name); err != nil {
		writeError(w, http.StatusInternalServerError, "could not send invite email")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "invite sent"})
}

// Verify consumes a magic link token and establishes the session.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token required")
		return
	}

	link, err := h.magicLinks.Consume(token)
	if err != nil {
		h.logger.Error("consume magic link", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if link == nil {
		writeError(w, http.StatusUnauthorized, "link is invalid or expired")
		return
	}

	user, err := h.users.GetByEmail(link.Email)
	if err != nil {
		h.logger.Error("lookup user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		if link.Purpose != purposeInvite {
			writeError(w, http.StatusUnauthorized, "account not found")
			return
		}
		name := link.Email[:strings.IndexByte(link.Email, '@')]
		user, err = h.users.Create(link.Email, name)
		if err != nil {
			h.logger.Error("create invited user", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}

	var familyID int64
	if link.Purpose == purposeInvite && link.FamilyID != nil {
		familyID = *link.FamilyID
		member, err := h.families.GetMember(familyID, user.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if member == nil {
			members, err := h.families.ListMembers(familyID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			color := memberColors[len(members)%len(memberColors)]
			if _, err := h.families.AddMember(familyID, user.ID, model.RoleChild, color); err != nil {
				h.logger.Error("add invited member", "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
		}
		if _, err := h.prefs.GetOrCreate(user.ID, familyID); err != nil {
			h.logger.Error("seed preferences", "error", err)
		}
	} else {
		families, err := h.families.ListForUser(user.ID)
		if err != nil || len(families) == 0 {
			writeError(w, http.StatusUnauthorized, "no family membership")
			return
		}
		familyID = families[0].ID
	}

	sess, err := h.sessions.Create(user.ID, familyID, sessionTTL)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.setSessionCookie(w, sess.Token, sessionTTL)
	h.logger.Info("signed in", "user_id", user.ID, "family_id", familyID, "purpose", link.Purpose)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout deletes the session and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if err := h.sessions.Delete(cookie.Value); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}
	h.setSessionCookie(w, "", -time.Hour)
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

// Me returns the authenticated user and membership.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := h.users.GetByID(ac.UserID)
	if err != nil || user == nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":      user,
		"family_id": ac.FamilyID,
		"role":      ac.Role,
	})
}

// SetPIN stores a bcrypt hash of a member's device PIN. Parents can set any
// member's PIN; members can set their own.
func (h *AuthHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	memberUserID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid member id")
		return
	}
	if memberUserID != ac.UserID && !auth.IsParent(r.Context()) {
		writeError(w, http.StatusForbidden, "parent role required")
		return
	}

	var req struct {
		PIN string `json:"pin"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.PIN) < 4 || len(req.PIN) > 8 {
		writeError(w, http.StatusBadRequest, "pin must be 4 to 8 digits")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.families.SetMemberPIN(ac.FamilyID, memberUserID, string(hash)); err != nil {
		h.logger.Error("set member pin", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "pin set"})
}

// VerifyPIN checks a member's PIN and switches the session to that member.
// Used on shared household devices.
func (h *AuthHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req struct {
		UserID int64  `json:"user_id"`
		PIN    string `json:"pin"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	member, err := h.families.GetMember(ac.FamilyID, req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if member == nil || member.PinHash == "" {
		writeError(w, http.StatusUnauthorized, "pin not set")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(member.PinHash), []byte(req.PIN)) != nil {
		writeError(w, http.StatusUnauthorized, "incorrect pin")
		return
	}

	sess, err := h.sessions.Create(req.UserID, ac.FamilyID, sessionTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.setSessionCookie(w, sess.Token, sessionTTL)
	writeJSON(w, http.StatusOK, map[string]string{"status": "switched"})
}

func (h *AuthHandler) sendLink(toEmail, purpose string, familyID *int64, familyName string) error {
	link, err := h.magicLinks.Create(toEmail, purpose, familyID)
	if err != nil {
		h.logger.Error("create magic link", "error", err)
		return err
	}
	if err := h.mail.SendMagicLink(toEmail, link.Token, purpose, familyName); err != nil {
		h.logger.Error("send magic link", "error", err, "purpose", purpose)
		return err
	}
	return nil
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
