package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"clinic-booking-api/internal/auth"
	"clinic-booking-api/internal/clinic"
	"clinic-booking-api/internal/handler"
	"clinic-booking-api/internal/model"
	"clinic-booking-api/internal/payment"
	"clinic-booking-api/internal/store"
)

const secret = "test-secret"

type fakeGateway struct {
	secret string
	err    error
}

func (f fakeGateway) CreateIntent(context.Context, decimal.Decimal) (string, error) {
	return f.secret, f.err
}

type env struct {
	e   *echo.Echo
	mem *store.Memory
}

func setup(t *testing.T, pay payment.Gateway) *env {
	t.Helper()
	mem := store.NewMemory()
	o := model.AppointmentOption{Name: "Teeth Cleaning", Slots: []string{"9:00", "9:30", "10:00"}, Price: decimal.NewFromInt(40)}
	if err := mem.UpsertOption(context.Background(), &o); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := clinic.NewService(mem, nil, zerolog.Nop())
	h := handler.New(svc, auth.NewValidator(mem, secret), pay, mem, zerolog.Nop())

	e := echo.New()
	h.RegisterRoutes(e, nil)
	return &env{e: e, mem: mem}
}

func (v *env) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	v.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func (v *env) register(t *testing.T, email string) clinic.Registration {
	t.Helper()
	rec := v.do(t, http.MethodPost, "/users", map[string]string{"email": email, "name": "Test"}, "")
	if rec.Code != http.StatusCreated && rec.Code != http.StatusOK {
		t.Fatalf("register %s: %d %s", email, rec.Code, rec.Body.String())
	}
	return decode[clinic.Registration](t, rec)
}

func (v *env) token(t *testing.T, email string) string {
	t.Helper()
	rec := v.do(t, http.MethodGet, "/jwt?email="+email, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("jwt for %s: %d", email, rec.Code)
	}
	return decode[map[string]string](t, rec)["Access_token"]
}

func bookingBody(email, date, slot string) map[string]string {
	return map[string]string{
		"email": email, "patient": "Pat", "phone": "555",
		"treatment": "Teeth Cleaning", "appointDate": date, "slot": slot,
	}
}

// ----- liveness -----

func TestRootAndHealth(t *testing.T) {
	v := setup(t, nil)
	rec := v.do(t, http.MethodGet, "/", nil, "")
	if rec.Code != http.StatusOK || rec.Body.String() != "doctors-portal server is running" {
		t.Errorf("root = %d %q", rec.Code, rec.Body.String())
	}
	if rec := v.do(t, http.MethodGet, "/health", nil, ""); rec.Code != http.StatusOK {
		t.Errorf("health = %d", rec.Code)
	}
}

// ----- availability -----

func TestAppointmentOptions(t *testing.T) {
	v := setup(t, nil)
	if rec := v.do(t, http.MethodPost, "/bookings", bookingBody("a@x.com", "2024-05-01", "9:30"), ""); rec.Code != http.StatusCreated {
		t.Fatalf("book: %d %s", rec.Code, rec.Body.String())
	}

	for _, path := range []string{"/appointmentOptions?date=2024-05-01", "/v2/appointmentOptions?date=2024-05-01"} {
		t.Run(path, func(t *testing.T) {
			rec := v.do(t, http.MethodGet, path, nil, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			out := decode[[]model.Availability](t, rec)
			if len(out) != 1 || fmt.Sprint(out[0].Slots) != "[9:00 10:00]" {
				t.Errorf("unexpected availability: %+v", out)
			}
		})
	}
}

func TestAppointmentSpecialty(t *testing.T) {
	v := setup(t, nil)
	rec := v.do(t, http.MethodGet, "/appointmentSpecialty", nil, "")
	out := decode[[]model.Treatment](t, rec)
	if len(out) != 1 || out[0].Name != "Teeth Cleaning" || out[0].ID == "" {
		t.Errorf("unexpected treatments: %+v", out)
	}
}

// ----- bookings -----

func TestCreateBookingConflict(t *testing.T) {
	v := setup(t, nil)
	rec := v.do(t, http.MethodPost, "/bookings", bookingBody("a@x.com", "2024-05-01", "9:00"), "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("first booking: %d", rec.Code)
	}
	first := decode[clinic.AdmissionResult](t, rec)
	if !first.Acknowledged || first.InsertedID == "" {
		t.Errorf("unexpected admission: %+v", first)
	}

	rec = v.do(t, http.MethodPost, "/bookings", bookingBody("a@x.com", "2024-05-01", "10:00"), "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", rec.Code)
	}
	dup := decode[clinic.AdmissionResult](t, rec)
	if dup.Acknowledged || dup.Message != "You already have a booking on 2024-05-01" {
		t.Errorf("unexpected rejection: %+v", dup)
	}
}

func TestCreateBookingInvalid(t *testing.T) {
	v := setup(t, nil)
	tests := []struct {
		name string
		body any
	}{
		{"missing email", bookingBody("", "2024-05-01", "9:00")},
		{"slot not offered", bookingBody("a@x.com", "2024-05-01", "7:00")},
		{"bad json", "not an object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := v.do(t, http.MethodPost, "/bookings", tt.body, ""); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestConcurrentBookingsOverHTTP(t *testing.T) {
	v := setup(t, nil)

	const n = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = map[int]int{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := v.do(t, http.MethodPost, "/bookings", bookingBody("race@x.com", "2024-05-01", "9:00"), "")
			mu.Lock()
			codes[rec.Code]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	if codes[http.StatusCreated] != 1 || codes[http.StatusConflict] != n-1 {
		t.Errorf("codes = %v, want one 201 and %d 409", codes, n-1)
	}
}

func TestGetBooking(t *testing.T) {
	v := setup(t, nil)
	res := decode[clinic.AdmissionResult](t, v.do(t, http.MethodPost, "/bookings", bookingBody("a@x.com", "2024-05-01", "9:00"), ""))

	if rec := v.do(t, http.MethodGet, "/bookings/"+res.InsertedID, nil, ""); rec.Code != http.StatusOK {
		t.Errorf("get = %d", rec.Code)
	}
	if rec := v.do(t, http.MethodGet, "/bookings/"+uuid.New().String(), nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown = %d, want 404", rec.Code)
	}
	if rec := v.do(t, http.MethodGet, "/bookings/xyz", nil, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed = %d, want 400", rec.Code)
	}
}

func TestBookingsByEmail(t *testing.T) {
	v := setup(t, nil)
	v.register(t, "a@x.com")
	v.register(t, "b@x.com")
	v.do(t, http.MethodPost, "/bookings", bookingBody("a@x.com", "2024-05-01", "9:00"), "")
	tok := v.token(t, "a@x.com")

	if rec := v.do(t, http.MethodGet, "/bookings?email=a@x.com", nil, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", rec.Code)
	}
	if rec := v.do(t, http.MethodGet, "/bookings?email=a@x.com", nil, "garbage"); rec.Code != http.StatusForbidden {
		t.Errorf("bad token = %d, want 403", rec.Code)
	}
	if rec := v.do(t, http.MethodGet, "/bookings?email=b@x.com", nil, tok); rec.Code != http.StatusForbidden {
		t.Errorf("other email = %d, want 403", rec.Code)
	}

	rec := v.do(t, http.MethodGet, "/bookings?email=a@x.com", nil, tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("own bookings = %d", rec.Code)
	}
	if out := decode[[]model.Booking](t, rec); len(out) != 1 {
		t.Errorf("got %d bookings, want 1", len(out))
	}
}

// ----- users and tokens -----

func TestIssueToken(t *testing.T) {
	v := setup(t, nil)
	rec := v.do(t, http.MethodGet, "/jwt?email=nobody@x.com", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown email = %d, want 401", rec.Code)
	}
	body := decode[map[string]string](t, rec)
	if tok, ok := body["Access_token"]; !ok || tok != "" {
		t.Errorf("denied issue body = %v, want an empty Access_token", body)
	}

	v.register(t, "a@x.com")
	if tok := v.token(t, "a@x.com"); tok == "" {
		t.Error("empty token for known email")
	}
}

func TestCreateUserBootstrap(t *testing.T) {
	v := setup(t, nil)
	first := v.register(t, "first@x.com")
	if !first.Created || !first.PromotedToAdmin {
		t.Errorf("first registration: %+v", first)
	}

	rec := v.do(t, http.MethodPost, "/users", map[string]string{"email": "first@x.com"}, "")
	if rec.Code != http.StatusOK {
		t.Errorf("re-register status = %d, want 200", rec.Code)
	}
	if again := decode[clinic.Registration](t, rec); again.Created || again.PromotedToAdmin {
		t.Errorf("re-register: %+v", again)
	}

	second := v.register(t, "second@x.com")
	if second.PromotedToAdmin {
		t.Error("second user promoted")
	}

	isAdmin := func(email string) bool {
		return decode[map[string]bool](t, v.do(t, http.MethodGet, "/users/admin/"+email, nil, ""))["isAdmin"]
	}
	if !isAdmin("first@x.com") || isAdmin("second@x.com") || isAdmin("ghost@x.com") {
		t.Error("unexpected admin flags")
	}

	users := decode[[]model.User](t, v.do(t, http.MethodGet, "/users", nil, ""))
	if len(users) != 2 {
		t.Errorf("listed %d users, want 2", len(users))
	}
}

func TestCreateUserRequiresEmail(t *testing.T) {
	v := setup(t, nil)
	if rec := v.do(t, http.MethodPost, "/users", map[string]string{"name": "x"}, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// ----- admin -----

func TestPromoteUser(t *testing.T) {
	v := setup(t, nil)
	v.register(t, "admin@x.com")
	user := v.register(t, "user@x.com")
	adminTok := v.token(t, "admin@x.com")
	userTok := v.token(t, "user@x.com")

	path := "/users/admin/" + user.User.ID
	if rec := v.do(t, http.MethodPut, path, nil, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", rec.Code)
	}
	if rec := v.do(t, http.MethodPut, path, nil, userTok); rec.Code != http.StatusForbidden {
		t.Errorf("non-admin = %d, want 403", rec.Code)
	}
	rec := v.do(t, http.MethodPut, path, nil, adminTok)
	if rec.Code != http.StatusOK || decode[map[string]int](t, rec)["modifiedCount"] != 1 {
		t.Errorf("promote = %d %s", rec.Code, rec.Body.String())
	}
	if rec := v.do(t, http.MethodPut, "/users/admin/"+uuid.New().String(), nil, adminTok); rec.Code != http.StatusNotFound {
		t.Errorf("unknown id = %d, want 404", rec.Code)
	}

	// the promoted user now passes the gate on its existing token
	if rec := v.do(t, http.MethodGet, "/doctors", nil, userTok); rec.Code != http.StatusOK {
		t.Errorf("promoted user = %d, want 200", rec.Code)
	}
}

func TestDoctors(t *testing.T) {
	v := setup(t, nil)
	v.register(t, "admin@x.com")
	tok := v.token(t, "admin@x.com")

	rec := v.do(t, http.MethodPost, "/dashboard/adddoctor",
		map[string]string{"name": "Dr. Who", "email": "who@x.com", "specialty": "Teeth Cleaning", "room": "2B"}, tok)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add = %d %s", rec.Code, rec.Body.String())
	}
	id, _ := decode[map[string]any](t, rec)["insertedId"].(string)

	docs := decode[[]model.Doctor](t, v.do(t, http.MethodGet, "/doctors", nil, tok))
	if len(docs) != 1 || docs[0].ID != id {
		t.Fatalf("unexpected doctors: %+v", docs)
	}
	if docs[0].Attributes["room"] != "2B" {
		t.Errorf("posted field dropped: %+v", docs[0])
	}

	for _, want := range []int64{1, 0} {
		rec := v.do(t, http.MethodDelete, "/doctors/"+id, nil, tok)
		if got := decode[map[string]int64](t, rec)["deletedCount"]; got != want {
			t.Errorf("deletedCount = %d, want %d", got, want)
		}
	}
}

// ----- payments -----

func TestCreatePaymentIntent(t *testing.T) {
	if rec := setup(t, nil).do(t, http.MethodPost, "/create-payment-intent", map[string]string{"price": "40"}, ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unconfigured = %d, want 503", rec.Code)
	}

	v := setup(t, fakeGateway{secret: "src_test_123"})
	rec := v.do(t, http.MethodPost, "/create-payment-intent", map[string]any{"price": 40}, "")
	if rec.Code != http.StatusOK || decode[map[string]string](t, rec)["clientSecret"] != "src_test_123" {
		t.Errorf("intent = %d %s", rec.Code, rec.Body.String())
	}
	if rec := v.do(t, http.MethodPost, "/create-payment-intent", map[string]any{"price": 0}, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("zero price = %d, want 400", rec.Code)
	}

	broken := setup(t, fakeGateway{err: errors.New("declined")})
	if rec := broken.do(t, http.MethodPost, "/create-payment-intent", map[string]any{"price": 40}, ""); rec.Code != http.StatusBadGateway {
		t.Errorf("gateway failure = %d, want 502", rec.Code)
	}
}

func TestRecordPayment(t *testing.T) {
	v := setup(t, nil)
	res := decode[clinic.AdmissionResult](t, v.do(t, http.MethodPost, "/bookings", bookingBody("a@x.com", "2024-05-01", "9:00"), ""))

	body := map[string]string{"bookingId": res.InsertedID, "transactionId": "tx_1", "amount": "40", "email": "a@x.com"}
	rec := v.do(t, http.MethodPost, "/payments", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("record = %d %s", rec.Code, rec.Body.String())
	}
	if rec := v.do(t, http.MethodPost, "/payments", body, ""); rec.Code != http.StatusOK {
		t.Errorf("replay = %d, want 200", rec.Code)
	}
	second := map[string]string{"bookingId": res.InsertedID, "transactionId": "tx_other", "amount": "40"}
	if rec := v.do(t, http.MethodPost, "/payments", second, ""); rec.Code != http.StatusConflict {
		t.Errorf("second transaction on a paid booking = %d, want 409", rec.Code)
	}
	if n := len(v.mem.Payments()); n != 1 {
		t.Errorf("ledger has %d payments, want 1", n)
	}

	b := decode[model.Booking](t, v.do(t, http.MethodGet, "/bookings/"+res.InsertedID, nil, ""))
	if !b.Paid || b.TransactionID == nil || *b.TransactionID != "tx_1" {
		t.Errorf("booking should stay paid under tx_1: %+v", b)
	}

	unknown := map[string]string{"bookingId": uuid.New().String(), "transactionId": "tx_2", "amount": "1"}
	if rec := v.do(t, http.MethodPost, "/payments", unknown, ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown booking = %d, want 404", rec.Code)
	}
}
