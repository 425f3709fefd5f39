package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/anantara-app/backend/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &Payment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newGateway(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/checkout/sessions" {
			http.NotFound(w, r)
			return
		}
		var req checkoutSessionReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(checkoutSessionResp{
			SessionID:   "cs_" + req.ReferenceID,
			CheckoutURL: "https://pay.example.com/s/" + req.ReferenceID,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	gw := newGateway(t)
	return NewService(db, NewCheckoutClient(gw.URL, "sk_test"), "https://app.example.com")
}

func createUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	u := &models.User{Name: "Maria", Email: "maria@example.com", Plan: FreePlan}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestCheckoutCreatesPendingPayment(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)
	user := createUser(t, db)

	p, url, err := svc.Checkout(context.Background(), user, "premium")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if url == "" {
		t.Fatal("expected a checkout url")
	}
	if p.Status != PaymentPending {
		t.Fatalf("status = %q, want pending", p.Status)
	}
	if p.Amount != Plans["premium"].Price {
		t.Fatalf("amount = %v, want %v", p.Amount, Plans["premium"].Price)
	}

	var stored Payment
	if err := db.First(&stored, "id = ?", p.ID).Error; err != nil {
		t.Fatalf("load payment: %v", err)
	}
	if stored.ProviderRef == "" {
		t.Fatal("provider ref not persisted")
	}

	// plan must not change before the webhook arrives
	var u models.User
	if err := db.First(&u, user.ID).Error; err != nil {
		t.Fatal(err)
	}
	if u.Plan != FreePlan {
		t.Fatalf("plan flipped early: %q", u.Plan)
	}
}

func TestCheckoutRejectsUnknownOrFreePlan(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)
	user := createUser(t, db)

	for _, plan := range []string{"gold", FreePlan, ""} {
		if _, _, err := svc.Checkout(context.Background(), user, plan); err != ErrUnknownPlan {
			t.Fatalf("plan %q: err = %v, want ErrUnknownPlan", plan, err)
		}
	}
}

func TestConfirmPaidSwitchesPlanOnce(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)
	user := createUser(t, db)

	p, _, err := svc.Checkout(context.Background(), user, "basico")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ConfirmPaid(context.Background(), p.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	var u models.User
	if err := db.First(&u, user.ID).Error; err != nil {
		t.Fatal(err)
	}
	if u.Plan != "basico" {
		t.Fatalf("plan = %q, want basico", u.Plan)
	}

	// duplicate webhook delivery is a no-op
	if _, err := svc.ConfirmPaid(context.Background(), p.ID); err != nil {
		t.Fatalf("duplicate confirm: %v", err)
	}
	var paid int64
	db.Model(&Payment{}).Where("status = ?", PaymentPaid).Count(&paid)
	if paid != 1 {
		t.Fatalf("paid payments = %d, want 1", paid)
	}
}

func TestConfirmPaidUnknownPayment(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)

	if _, err := svc.ConfirmPaid(context.Background(), "01HZZZZZZZZZZZZZZZZZZZZZZZ"); err != ErrPaymentNotFound {
		t.Fatalf("err = %v, want ErrPaymentNotFound", err)
	}
}

func TestRefundRevertsToFree(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)
	user := createUser(t, db)

	p, _, err := svc.Checkout(context.Background(), user, "ilimitado")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ConfirmPaid(context.Background(), p.ID); err != nil {
		t.Fatal(err)
	}

	if err := svc.Refund(context.Background(), p.ID); err != nil {
		t.Fatalf("refund: %v", err)
	}

	var u models.User
	if err := db.First(&u, user.ID).Error; err != nil {
		t.Fatal(err)
	}
	if u.Plan != FreePlan {
		t.Fatalf("plan = %q, want free", u.Plan)
	}

	var stored Payment
	if err := db.First(&stored, "id = ?", p.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.Status != PaymentRefunded {
		t.Fatalf("status = %q, want refunded", stored.Status)
	}
}

func TestRefundRequiresPaid(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)
	user := createUser(t, db)

	p, _, err := svc.Checkout(context.Background(), user, "premium")
	if err != nil {
		t.Fatal(err)
	}

	// still pending: refund is a no-op
	if err := svc.Refund(context.Background(), p.ID); err != nil {
		t.Fatal(err)
	}
	var stored Payment
	if err := db.First(&stored, "id = ?", p.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.Status != PaymentPending {
		t.Fatalf("status = %q, want pending", stored.Status)
	}
}

func TestCancelDropsToFree(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)
	user := createUser(t, db)
	db.Model(user).Update("plan", "premium")

	if err := svc.Cancel(context.Background(), user.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	var u models.User
	if err := db.First(&u, user.ID).Error; err != nil {
		t.Fatal(err)
	}
	if u.Plan != FreePlan {
		t.Fatalf("plan = %q, want free", u.Plan)
	}
}

func TestListPaymentsScopedToUser(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)
	alice := createUser(t, db)
	bob := &models.User{Name: "Bob", Email: "bob@example.com", Plan: FreePlan}
	if err := db.Create(bob).Error; err != nil {
		t.Fatal(err)
	}

	if _, _, err := svc.Checkout(context.Background(), alice, "basico"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Checkout(context.Background(), bob, "premium"); err != nil {
		t.Fatal(err)
	}

	got, err := svc.ListPayments(context.Background(), alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].PlanID != "basico" {
		t.Fatalf("unexpected payments: %+v", got)
	}
}
