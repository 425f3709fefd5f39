package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/anantara-app/backend/internal/ai"
	"github.com/anantara-app/backend/internal/billing"
	"github.com/anantara-app/backend/internal/chat"
	"github.com/anantara-app/backend/internal/config"
	"github.com/anantara-app/backend/internal/content"
	"github.com/anantara-app/backend/internal/email"
	"github.com/anantara-app/backend/internal/models"
	"github.com/anantara-app/backend/internal/reset"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

// fakeMailer records mails on a channel; handlers dispatch async.
type fakeMailer struct {
	ch chan sentMail
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{ch: make(chan sentMail, 16)}
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.ch <- sentMail{To: to, Subject: subject, Body: body}
	return nil
}

func (m *fakeMailer) wait(t *testing.T) sentMail {
	t.Helper()
	select {
	case mail := <-m.ch:
		return mail
	case <-time.After(2 * time.Second):
		t.Fatal("no mail arrived")
		return sentMail{}
	}
}

type fakeProvider struct {
	reply string
}

func (p *fakeProvider) Chat(_ context.Context, _ []ai.Message) (string, error) {
	return p.reply, nil
}

type env struct {
	router *gin.Engine
	db     *gorm.DB
	mailer *fakeMailer
	cfg    config.Config
}

func newEnv(t *testing.T) *env {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(
		&models.User{},
		&reset.Token{},
		&chat.Session{},
		&chat.Message{},
		&billing.Payment{},
		&content.Prompt{},
		&content.Document{},
		&email.Job{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"session_id":   "cs_test",
			"checkout_url": "https://pay.example.com/s/test",
		})
	}))
	t.Cleanup(gateway.Close)

	cfg := config.Config{
		Port:                  "0",
		JWTSecret:             "test-secret",
		FrontendOrigin:        "http://localhost:3000",
		AIProvider:            "fake",
		AIModel:               "test-model",
		ChatContextWindowSize: 10,
		ResetTokenTTL:         30 * time.Minute,
		CheckoutBaseURL:       gateway.URL,
		CheckoutAPIKey:        "sk_test",
		CheckoutWebhookSecret: "whsec_test",
		AdminSetupKey:         "setup-key",
	}

	reg := ai.NewRegistry()
	reg.Register("fake", func(_ context.Context, _ string) (ai.Provider, error) {
		return &fakeProvider{reply: "Estou aqui com você."}, nil
	})

	mailer := newFakeMailer()
	router := NewRouter(gdb, cfg, reg, nil, nil, mailer)

	return &env{router: router, db: gdb, mailer: mailer, cfg: cfg}
}

type apiResp struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *env) do(t *testing.T, method, path, token string, payload any) (int, apiResp) {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewBuffer(b)
	} else {
		body = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp apiResp
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %s %s: %v (body %q)", method, path, err, w.Body.String())
	}
	return w.Code, resp
}

func (e *env) register(t *testing.T, name, emailAddr, password string) string {
	t.Helper()
	status, resp := e.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"name":     name,
		"email":    emailAddr,
		"password": password,
	})
	if status != http.StatusOK {
		t.Fatalf("register status = %d (%s)", status, resp.Message)
	}
	e.mailer.wait(t) // welcome mail

	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil || data.Token == "" {
		t.Fatalf("register returned no token: %v", err)
	}
	return data.Token
}

func TestRegisterLoginMe(t *testing.T) {
	e := newEnv(t)
	e.register(t, "Maria", "maria@example.com", "senha123")

	status, resp := e.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "maria@example.com",
		"password": "senha123",
	})
	if status != http.StatusOK {
		t.Fatalf("login status = %d", status)
	}
	var login struct {
		Token string `json:"token"`
		User  struct {
			Plan string `json:"subscription_plan"`
		} `json:"user"`
	}
	if err := json.Unmarshal(resp.Data, &login); err != nil {
		t.Fatal(err)
	}
	if login.User.Plan != "free" {
		t.Fatalf("plan = %q, want free", login.User.Plan)
	}

	status, resp = e.do(t, http.MethodGet, "/api/auth/me", login.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("me status = %d", status)
	}
	var me struct {
		Remaining int `json:"messages_remaining_today"`
	}
	if err := json.Unmarshal(resp.Data, &me); err != nil {
		t.Fatal(err)
	}
	if me.Remaining != billing.Plans["free"].MessagesPerDay {
		t.Fatalf("messages_remaining_today = %d", me.Remaining)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	e := newEnv(t)
	e.register(t, "Maria", "maria@example.com", "senha123")

	status, _ := e.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "maria@example.com",
		"password": "errada",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", status)
	}
}

func TestMeRequiresAuth(t *testing.T) {
	e := newEnv(t)
	status, _ := e.do(t, http.MethodGet, "/api/auth/me", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", status)
	}
}

func TestUpdateProfile(t *testing.T) {
	e := newEnv(t)
	token := e.register(t, "Maria", "maria@example.com", "senha123")

	status, resp := e.do(t, http.MethodPut, "/api/auth/profile", token, gin.H{
		"name":  "Maria Silva",
		"phone": "+55 11 99999-0000",
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d (%s)", status, resp.Message)
	}

	var user models.User
	if err := e.db.First(&user, "email = ?", "maria@example.com").Error; err != nil {
		t.Fatal(err)
	}
	if user.Name != "Maria Silva" || user.Phone != "+55 11 99999-0000" {
		t.Fatalf("profile not updated: %+v", user)
	}
}

var tokenRe = regexp.MustCompile(`token=([A-Za-z0-9_-]+)`)

const forgotMsg = "Se o email existir em nossa base, você receberá as instruções de recuperação."

func forgotBody(t *testing.T, resp apiResp) string {
	t.Helper()
	var data struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatal(err)
	}
	return data.Message
}

func TestForgotPasswordFlow(t *testing.T) {
	e := newEnv(t)
	e.register(t, "Maria", "maria@example.com", "senha123")

	status, resp := e.do(t, http.MethodPost, "/api/auth/forgot-password", "", gin.H{
		"email": "maria@example.com",
	})
	if status != http.StatusOK {
		t.Fatalf("forgot status = %d", status)
	}
	if forgotBody(t, resp) != forgotMsg {
		t.Fatalf("unexpected body: %q", forgotBody(t, resp))
	}

	mail := e.mailer.wait(t)
	m := tokenRe.FindStringSubmatch(mail.Body)
	if m == nil {
		t.Fatalf("no token in mail body: %q", mail.Body)
	}
	rawToken := m[1]

	// weak password rejected before the token is touched
	status, _ = e.do(t, http.MethodPost, "/api/auth/reset-password", "", gin.H{
		"token":        rawToken,
		"new_password": "curta",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("weak password status = %d, want 400", status)
	}

	status, _ = e.do(t, http.MethodPost, "/api/auth/reset-password", "", gin.H{
		"token":        rawToken,
		"new_password": "novasenha",
	})
	if status != http.StatusOK {
		t.Fatalf("reset status = %d", status)
	}

	// old password no longer works
	status, _ = e.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "maria@example.com",
		"password": "senha123",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("old password status = %d, want 401", status)
	}

	// new password does
	status, _ = e.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "maria@example.com",
		"password": "novasenha",
	})
	if status != http.StatusOK {
		t.Fatalf("new password status = %d", status)
	}

	// token is single use
	status, _ = e.do(t, http.MethodPost, "/api/auth/reset-password", "", gin.H{
		"token":        rawToken,
		"new_password": "outrasenha",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("reuse status = %d, want 400", status)
	}
}

func TestForgotPasswordUnknownEmailSameBody(t *testing.T) {
	e := newEnv(t)

	status, resp := e.do(t, http.MethodPost, "/api/auth/forgot-password", "", gin.H{
		"email": "ninguem@example.com",
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if forgotBody(t, resp) != forgotMsg {
		t.Fatalf("unexpected body: %q", forgotBody(t, resp))
	}

	select {
	case mail := <-e.mailer.ch:
		t.Fatalf("mail sent for unknown address: %+v", mail)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestForgotPasswordMalformedEmail(t *testing.T) {
	e := newEnv(t)

	status, _ := e.do(t, http.MethodPost, "/api/auth/forgot-password", "", gin.H{
		"email": "nao-e-um-email",
	})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", status)
	}
}

func TestResetPasswordGarbageToken(t *testing.T) {
	e := newEnv(t)

	status, _ := e.do(t, http.MethodPost, "/api/auth/reset-password", "", gin.H{
		"token":        "nao-existe",
		"new_password": "novasenha",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
}

func TestChatFlow(t *testing.T) {
	e := newEnv(t)
	token := e.register(t, "Maria", "maria@example.com", "senha123")

	status, resp := e.do(t, http.MethodPost, "/api/session", token, nil)
	if status != http.StatusOK {
		t.Fatalf("create session status = %d (%s)", status, resp.Message)
	}
	var sess struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Data, &sess); err != nil || sess.ID == "" {
		t.Fatalf("no session id: %v", err)
	}

	status, resp = e.do(t, http.MethodPost, "/api/chat", token, gin.H{
		"session_id": sess.ID,
		"message":    "Estou me sentindo ansiosa hoje.",
	})
	if status != http.StatusOK {
		t.Fatalf("chat status = %d (%s)", status, resp.Message)
	}
	var chatResp struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(resp.Data, &chatResp); err != nil {
		t.Fatal(err)
	}
	if chatResp.Response != "Estou aqui com você." {
		t.Fatalf("response = %q", chatResp.Response)
	}

	status, resp = e.do(t, http.MethodGet, "/api/session/"+sess.ID+"/messages", token, nil)
	if status != http.StatusOK {
		t.Fatalf("messages status = %d", status)
	}
	var msgs struct {
		Messages []struct {
			IsUser  bool   `json:"is_user"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(resp.Data, &msgs); err != nil {
		t.Fatal(err)
	}
	if len(msgs.Messages) != 2 || !msgs.Messages[0].IsUser || msgs.Messages[1].IsUser {
		t.Fatalf("unexpected messages: %+v", msgs.Messages)
	}

	// history is an alias
	status, _ = e.do(t, http.MethodGet, "/api/session/"+sess.ID+"/history", token, nil)
	if status != http.StatusOK {
		t.Fatalf("history status = %d", status)
	}

	status, _ = e.do(t, http.MethodPost, "/api/session/"+sess.ID+"/summary", token, nil)
	if status != http.StatusOK {
		t.Fatalf("summary status = %d", status)
	}
}

func TestChatForeignSessionHidden(t *testing.T) {
	e := newEnv(t)
	tokenA := e.register(t, "Alice", "alice@example.com", "senha123")
	tokenB := e.register(t, "Bob", "bob@example.com", "senha123")

	status, resp := e.do(t, http.MethodPost, "/api/session", tokenA, nil)
	if status != http.StatusOK {
		t.Fatal("create session failed")
	}
	var sess struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Data, &sess); err != nil {
		t.Fatal(err)
	}

	status, _ = e.do(t, http.MethodGet, "/api/session/"+sess.ID, tokenB, nil)
	if status != http.StatusNotFound {
		t.Fatalf("foreign session status = %d, want 404", status)
	}
}

func TestPlansPublic(t *testing.T) {
	e := newEnv(t)
	status, resp := e.do(t, http.MethodGet, "/api/plans", "", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var data struct {
		Plans map[string]struct {
			Name  string  `json:"name"`
			Price float64 `json:"price"`
		} `json:"plans"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatal(err)
	}
	if len(data.Plans) != 4 {
		t.Fatalf("plans = %d, want 4", len(data.Plans))
	}
	if data.Plans["premium"].Price != 29.90 {
		t.Fatalf("premium price = %v", data.Plans["premium"].Price)
	}
}

func TestCheckoutAndWebhook(t *testing.T) {
	e := newEnv(t)
	token := e.register(t, "Maria", "maria@example.com", "senha123")

	status, resp := e.do(t, http.MethodPost, "/api/subscription/checkout", token, gin.H{
		"plan_id": "premium",
	})
	if status != http.StatusOK {
		t.Fatalf("checkout status = %d (%s)", status, resp.Message)
	}
	var co struct {
		PaymentID   string `json:"payment_id"`
		CheckoutURL string `json:"checkout_url"`
	}
	if err := json.Unmarshal(resp.Data, &co); err != nil || co.CheckoutURL == "" {
		t.Fatalf("bad checkout response: %v", err)
	}

	// webhook without the secret is rejected
	status, _ = e.do(t, http.MethodPost, "/api/subscription/webhook", "", gin.H{
		"event":        "checkout.paid",
		"reference_id": co.PaymentID,
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("unsigned webhook status = %d, want 401", status)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/subscription/webhook",
		bytes.NewBufferString(fmt.Sprintf(`{"event":"checkout.paid","reference_id":%q}`, co.PaymentID)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", e.cfg.CheckoutWebhookSecret)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("webhook status = %d (%s)", w.Code, w.Body.String())
	}
	e.mailer.wait(t) // receipt

	var user models.User
	if err := e.db.First(&user, "email = ?", "maria@example.com").Error; err != nil {
		t.Fatal(err)
	}
	if user.Plan != "premium" {
		t.Fatalf("plan = %q, want premium", user.Plan)
	}

	status, resp = e.do(t, http.MethodGet, "/api/subscription/payments", token, nil)
	if status != http.StatusOK {
		t.Fatalf("payments status = %d", status)
	}
	var payments struct {
		Payments []struct {
			Status string `json:"status"`
		} `json:"payments"`
	}
	if err := json.Unmarshal(resp.Data, &payments); err != nil {
		t.Fatal(err)
	}
	if len(payments.Payments) != 1 || payments.Payments[0].Status != "paid" {
		t.Fatalf("unexpected payments: %+v", payments.Payments)
	}

	status, _ = e.do(t, http.MethodPost, "/api/subscription/cancel", token, nil)
	if status != http.StatusOK {
		t.Fatalf("cancel status = %d", status)
	}
	if err := e.db.First(&user, "email = ?", "maria@example.com").Error; err != nil {
		t.Fatal(err)
	}
	if user.Plan != "free" {
		t.Fatalf("plan after cancel = %q, want free", user.Plan)
	}
}

func TestAdminBootstrapAndConsole(t *testing.T) {
	e := newEnv(t)
	userToken := e.register(t, "Maria", "maria@example.com", "senha123")

	// wrong setup key
	status, _ := e.do(t, http.MethodPost, "/api/admin/create-admin", "", gin.H{
		"name":      "Root",
		"email":     "root@example.com",
		"password":  "senha123",
		"setup_key": "errada",
	})
	if status != http.StatusForbidden {
		t.Fatalf("bad setup key status = %d, want 403", status)
	}

	status, _ = e.do(t, http.MethodPost, "/api/admin/create-admin", "", gin.H{
		"name":      "Root",
		"email":     "root@example.com",
		"password":  "senha123",
		"setup_key": e.cfg.AdminSetupKey,
	})
	if status != http.StatusOK {
		t.Fatalf("create admin status = %d", status)
	}

	status, resp := e.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "root@example.com",
		"password": "senha123",
	})
	if status != http.StatusOK {
		t.Fatal("admin login failed")
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Data, &login); err != nil {
		t.Fatal(err)
	}
	adminToken := login.Token

	// regular users are locked out of the console
	status, _ = e.do(t, http.MethodGet, "/api/admin/users", userToken, nil)
	if status != http.StatusForbidden {
		t.Fatalf("non-admin status = %d, want 403", status)
	}

	status, resp = e.do(t, http.MethodGet, "/api/admin/users?search=maria", adminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("admin users status = %d", status)
	}
	var users struct {
		Users []models.User `json:"users"`
	}
	if err := json.Unmarshal(resp.Data, &users); err != nil {
		t.Fatal(err)
	}
	if len(users.Users) != 1 || users.Users[0].Email != "maria@example.com" {
		t.Fatalf("unexpected search result: %+v", users.Users)
	}
	userID := users.Users[0].ID

	status, _ = e.do(t, http.MethodPut, fmt.Sprintf("/api/admin/user/%d/plan", userID), adminToken, gin.H{
		"plan": "ilimitado",
	})
	if status != http.StatusOK {
		t.Fatalf("set plan status = %d", status)
	}
	var u models.User
	if err := e.db.First(&u, userID).Error; err != nil {
		t.Fatal(err)
	}
	if u.Plan != "ilimitado" {
		t.Fatalf("plan = %q, want ilimitado", u.Plan)
	}

	status, _ = e.do(t, http.MethodPut, "/api/admin/prompts", adminToken, gin.H{
		"name":    "system",
		"content": "Você é Anantara, acolha com presença.",
	})
	if status != http.StatusOK {
		t.Fatalf("upsert prompt status = %d", status)
	}

	status, _ = e.do(t, http.MethodPut, "/api/admin/documents/terms", adminToken, gin.H{
		"title":   "Termos de uso",
		"content": "Conteúdo dos termos.",
	})
	if status != http.StatusOK {
		t.Fatalf("upsert document status = %d", status)
	}

	status, resp = e.do(t, http.MethodGet, "/api/admin/documents/terms", adminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("get document status = %d", status)
	}
	var doc struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(resp.Data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Title != "Termos de uso" {
		t.Fatalf("title = %q", doc.Title)
	}
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	status, _ := e.do(t, http.MethodGet, "/api/health", "", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
}
