package devserver

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"snappdf/internal/infra"
	"snappdf/internal/storage"
)

// App wires the HTTP handlers to the store, the asset filesystem, and the
// shared configuration.
type App struct {
	cfg    *infra.Config
	store  *Store
	assets *storage.FileStore
	logger infra.Logger
}

// NewApp builds the handler set. The assets store is created under the
// configured storage path.
func NewApp(cfg *infra.Config, logger infra.Logger) (*App, error) {
	assets, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, store: NewStore(), assets: assets, logger: logger}, nil
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]string{"message": message})
}

// data wraps a payload in the {"data": ...} envelope most endpoints use.
func (a *App) data(w http.ResponseWriter, code int, v any) {
	a.json(w, code, map[string]any{"data": v})
}

// sessionDTO is the session payload. It is deliberately NOT wrapped in the
// data envelope; the hosted backend returns it bare and the clients rely on
// that shape.
type sessionDTO struct {
	ID          string `json:"_id"`
	Fullname    string `json:"fullname"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	Credit      int    `json:"credit"`
	UsedCredits int    `json:"usedCredits"`
	Image       string `json:"image,omitempty"`
}

func toSessionDTO(u *User) sessionDTO {
	return sessionDTO{
		ID:          u.ID,
		Fullname:    u.Fullname,
		Email:       u.Email,
		Role:        u.Role,
		Credit:      u.Credit,
		UsedCredits: u.UsedCredits,
		Image:       u.Image,
	}
}

// --- /api/user ---

func (a *App) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fullname string `json:"fullname"`
		Email    string `json:"email"`
		Mobile   string `json:"mobile"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(req.Fullname) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		a.error(w, http.StatusBadRequest, "fullname, email and password are required")
		return
	}
	if _, err := a.store.CreateUser(req.Fullname, req.Email, req.Mobile, req.Password); err != nil {
		if errors.Is(err, errDuplicate) {
			a.error(w, http.StatusConflict, "an account with this email already exists")
			return
		}
		a.error(w, http.StatusInternalServerError, "could not create account")
		return
	}
	a.json(w, http.StatusCreated, map[string]string{"message": "account created, please login"})
}

func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	u, err := a.store.Authenticate(req.Email, req.Password)
	if err != nil {
		a.error(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err := a.issueCookies(w, u.ID); err != nil {
		a.logger.Error().Err(err).Msg("devserver: issue cookies")
		a.error(w, http.StatusInternalServerError, "could not establish session")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"message": "login successfully"})
}

func (a *App) Logout(w http.ResponseWriter, r *http.Request) {
	a.clearCookies(w)
	a.json(w, http.StatusOK, map[string]string{"message": "logout successfully"})
}

func (a *App) Session(w http.ResponseWriter, r *http.Request, u *User) {
	a.json(w, http.StatusOK, toSessionDTO(u))
}

// RefreshToken rotates the access cookie off the refresh cookie. The access
// cookie may already be expired; only the refresh credential matters here.
func (a *App) RefreshToken(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(refreshCookie)
	if err != nil || c.Value == "" {
		a.error(w, http.StatusUnauthorized, "please login to continue")
		return
	}
	userID, err := a.parseToken(c.Value, kindRefresh)
	if err != nil {
		a.error(w, http.StatusUnauthorized, "session expired, please login again")
		return
	}
	if _, err := a.store.UserByID(userID); err != nil {
		a.error(w, http.StatusUnauthorized, "session expired, please login again")
		return
	}
	if err := a.issueCookies(w, userID); err != nil {
		a.logger.Error().Err(err).Msg("devserver: issue cookies")
		a.error(w, http.StatusInternalServerError, "could not refresh session")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"message": "token refreshed"})
}

func (a *App) UpdateImage(w http.ResponseWriter, r *http.Request, u *User) {
	var req struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Image) == "" {
		a.error(w, http.StatusBadRequest, "image url is required")
		return
	}
	if err := a.store.SetUserImage(u.ID, req.Image); err != nil {
		a.error(w, http.StatusInternalServerError, "could not update image")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"message": "image updated"})
}

// --- /api/plan ---

func (a *App) ListPlans(w http.ResponseWriter, r *http.Request) {
	a.data(w, http.StatusOK, a.store.Plans())
}

type planInput struct {
	Name    string `json:"name"`
	Price   int    `json:"price"`
	Credits int    `json:"credits"`
	Note    string `json:"note"`
}

func (in planInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("name is required")
	}
	if in.Price < 0 {
		return errors.New("price must not be negative")
	}
	if in.Credits <= 0 {
		return errors.New("credits must be positive")
	}
	return nil
}

func (a *App) CreatePlan(w http.ResponseWriter, r *http.Request, _ *User) {
	var in planInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := in.validate(); err != nil {
		a.error(w, http.StatusBadRequest, err.Error())
		return
	}
	p := a.store.CreatePlan(strings.TrimSpace(in.Name), in.Price, in.Credits, in.Note)
	a.data(w, http.StatusCreated, p)
}

func (a *App) UpdatePlan(w http.ResponseWriter, r *http.Request, _ *User) {
	var in planInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := in.validate(); err != nil {
		a.error(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.store.UpdatePlan(chi.URLParam(r, "id"), strings.TrimSpace(in.Name), in.Price, in.Credits, in.Note)
	if err != nil {
		a.error(w, http.StatusNotFound, "plan not found")
		return
	}
	a.data(w, http.StatusOK, p)
}

func (a *App) DeletePlan(w http.ResponseWriter, r *http.Request, _ *User) {
	if err := a.store.DeletePlan(chi.URLParam(r, "id")); err != nil {
		a.error(w, http.StatusNotFound, "plan not found")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"message": "plan deleted"})
}

func (a *App) Checkout(w http.ResponseWriter, r *http.Request, u *User) {
	plan, err := a.store.PlanByID(chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, http.StatusNotFound, "plan not found")
		return
	}
	order := a.store.CreateOrder(u.ID, plan)
	a.json(w, http.StatusOK, map[string]any{
		"order": map[string]any{"id": order.ID, "amount": order.Amount},
	})
}

// VerifyPayment checks the gateway signature and credits the account. In
// non-production environments the literal signature "test" is accepted so
// the purchase flow can be exercised without a gateway.
func (a *App) VerifyPayment(w http.ResponseWriter, r *http.Request, u *User) {
	var req struct {
		OrderID   string `json:"razorpay_order_id"`
		PaymentID string `json:"razorpay_payment_id"`
		Signature string `json:"razorpay_signature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		a.error(w, http.StatusBadRequest, "order id, payment id and signature are required")
		return
	}
	order, err := a.store.TakeOrder(req.OrderID)
	if err != nil || order.UserID != u.ID || order.PlanID != chi.URLParam(r, "id") {
		a.error(w, http.StatusBadRequest, "unknown order")
		return
	}
	if !a.validSignature(req.OrderID, req.PaymentID, req.Signature) {
		a.error(w, http.StatusBadRequest, "payment signature mismatch")
		return
	}
	plan, err := a.store.PlanByID(order.PlanID)
	if err != nil {
		a.error(w, http.StatusBadRequest, "plan no longer exists")
		return
	}
	if err := a.store.AddCredits(u.ID, plan.Credits); err != nil {
		a.error(w, http.StatusInternalServerError, "could not apply credits")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"message": "payment verified, credits added"})
}

func (a *App) validSignature(orderID, paymentID, signature string) bool {
	if a.cfg.AppEnv != "production" && signature == "test" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(a.cfg.CheckoutSecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(signature))
}

// --- /api/storage ---

func (a *App) ListFiles(w http.ResponseWriter, r *http.Request, u *User) {
	a.data(w, http.StatusOK, a.store.FilesByOwner(u.ID))
}

func (a *App) UploadFile(w http.ResponseWriter, r *http.Request, u *User) {
	r.Body = http.MaxBytesReader(w, r.Body, a.cfg.MaxUploadBytes+4096)
	if err := r.ParseMultipartForm(a.cfg.MaxUploadBytes); err != nil {
		a.error(w, http.StatusRequestEntityTooLarge, "pdf must be 2MB or smaller")
		return
	}
	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		a.error(w, http.StatusBadRequest, "title is required")
		return
	}
	part, header, err := r.FormFile("path")
	if err != nil {
		a.error(w, http.StatusBadRequest, "pdf file is required")
		return
	}
	defer part.Close()
	data, err := io.ReadAll(io.LimitReader(part, a.cfg.MaxUploadBytes+1))
	if err != nil {
		a.error(w, http.StatusBadRequest, "could not read upload")
		return
	}
	if int64(len(data)) > a.cfg.MaxUploadBytes {
		a.error(w, http.StatusRequestEntityTooLarge, "pdf must be 2MB or smaller")
		return
	}
	if err := a.store.SpendCredit(u.ID); err != nil {
		a.error(w, http.StatusPaymentRequired, "no credits left, upgrade your plan")
		return
	}

	id := uuid.NewString()
	key := path.Join("pdfs", u.ID, id+".pdf")
	if _, err := a.assets.Write(r.Context(), key, data); err != nil {
		a.logger.Error().Err(err).Msg("devserver: store pdf")
		a.error(w, http.StatusInternalServerError, "could not store file")
		return
	}
	f := &StoredFile{
		ID:        id,
		OwnerID:   u.ID,
		Title:     title,
		Path:      a.cfg.StorageBaseURL + "/" + key,
		Key:       key,
		Text:      extractText(data, header.Filename),
		CreatedAt: time.Now().UTC(),
	}
	a.store.AddFile(f)
	a.data(w, http.StatusCreated, f)
}

func (a *App) DeleteFile(w http.ResponseWriter, r *http.Request, u *User) {
	key, err := a.store.RemoveFile(chi.URLParam(r, "id"), u.ID)
	if err != nil {
		a.error(w, http.StatusNotFound, "file not found")
		return
	}
	if err := a.assets.Remove(r.Context(), key); err != nil {
		a.logger.Warn().Err(err).Str("key", key).Msg("devserver: remove stored pdf")
	}
	a.json(w, http.StatusOK, map[string]string{"message": "file deleted"})
}

func (a *App) UploadLogo(w http.ResponseWriter, r *http.Request, u *User) {
	r.Body = http.MaxBytesReader(w, r.Body, a.cfg.MaxUploadBytes+4096)
	if err := r.ParseMultipartForm(a.cfg.MaxUploadBytes); err != nil {
		a.error(w, http.StatusRequestEntityTooLarge, "image is too large")
		return
	}
	part, header, err := r.FormFile("image")
	if err != nil {
		a.error(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer part.Close()
	data, err := io.ReadAll(io.LimitReader(part, a.cfg.MaxUploadBytes+1))
	if err != nil || len(data) == 0 {
		a.error(w, http.StatusBadRequest, "could not read image")
		return
	}
	ext := path.Ext(header.Filename)
	if ext == "" {
		ext = ".png"
	}
	key := path.Join("logos", u.ID+ext)
	if _, err := a.assets.Write(r.Context(), key, data); err != nil {
		a.logger.Error().Err(err).Msg("devserver: store logo")
		a.error(w, http.StatusInternalServerError, "could not store image")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"url": a.cfg.StorageBaseURL + "/" + key})
}

// --- /api/chat ---

func (a *App) ChatHistory(w http.ResponseWriter, r *http.Request, u *User) {
	fileID := chi.URLParam(r, "id")
	a.json(w, http.StatusOK, map[string]any{"chats": a.store.ChatsByFile(fileID, u.ID)})
}

type askRequest struct {
	UserQuestion string `json:"userQuestion"`
	PDFText      string `json:"pdfText"`
	FileID       string `json:"fileId"`
	FileTitle    string `json:"fileTitle"`
}

// Ask answers each question in the batch. There is no model behind the
// development server; the answer quotes the first matching passage from the
// document text so the conversation flow is still realistic.
func (a *App) Ask(w http.ResponseWriter, r *http.Request, u *User) {
	var batch []askRequest
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil || len(batch) == 0 {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	out := make([]*ChatEntry, 0, len(batch))
	for _, q := range batch {
		if strings.TrimSpace(q.UserQuestion) == "" || strings.TrimSpace(q.FileID) == "" {
			a.error(w, http.StatusBadRequest, "question and file id are required")
			return
		}
		text := q.PDFText
		if text == "" {
			if f, err := a.store.FileByID(q.FileID); err == nil {
				text = f.Text
			}
		}
		entry := &ChatEntry{
			ID:        uuid.NewString(),
			OwnerID:   u.ID,
			FileID:    q.FileID,
			Question:  q.UserQuestion,
			Answer:    answerFor(q.UserQuestion, text, q.FileTitle),
			FileTitle: q.FileTitle,
		}
		a.store.AddChat(entry)
		out = append(out, entry)
	}
	a.data(w, http.StatusOK, out)
}

func (a *App) DeleteChat(w http.ResponseWriter, r *http.Request, u *User) {
	if err := a.store.RemoveChat(chi.URLParam(r, "id"), u.ID); err != nil {
		a.error(w, http.StatusNotFound, "chat not found")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"message": "chat deleted"})
}

// answerFor finds the sentence of the document text sharing the most words
// with the question. Crude, but it keeps dev conversations grounded in the
// uploaded document rather than returning a constant string.
func answerFor(question, text, title string) string {
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '\n' || r == '?' || r == '!'
	})
	qWords := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(question)) {
		qWords[strings.Trim(w, ",;:\"'")] = true
	}
	best, bestScore := "", 0
	for _, s := range sentences {
		score := 0
		for _, w := range strings.Fields(strings.ToLower(s)) {
			if qWords[strings.Trim(w, ",;:\"'")] {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = strings.TrimSpace(s), score
		}
	}
	if best == "" {
		if title == "" {
			title = "this document"
		}
		return fmt.Sprintf("I could not find anything about that in %s.", title)
	}
	return best + "."
}

// extractText pulls whatever plain text is recoverable from the upload. Real
// extraction happens client-side before asking; this fallback only feeds the
// development answerer.
func extractText(data []byte, filename string) string {
	if strings.HasSuffix(strings.ToLower(filename), ".txt") {
		return string(data)
	}
	var b strings.Builder
	for _, c := range string(data) {
		if c == '\n' || c == ' ' || (c >= 32 && c < 127) {
			b.WriteRune(c)
		}
	}
	return b.String()
}
