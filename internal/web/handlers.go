package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"storefront/internal/cart"
	"storefront/internal/gateway"
	"storefront/internal/guestcart"
	"storefront/internal/settings"
	"storefront/internal/shipping"
)

// Handler owns one cart engine per session and exposes the cart forms.
type Handler struct {
	log            *logrus.Entry
	kv             guestcart.KV
	cartServiceURL string
	settings       *settings.Client

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	svc    *cart.Service
	authed bool
}

// NewHandler wires the handler against the guest store backend, the cart
// service base URL and the settings source.
func NewHandler(log *logrus.Entry, kv guestcart.KV, cartServiceURL string, st *settings.Client) *Handler {
	return &Handler{
		log:            log,
		kv:             kv,
		cartServiceURL: cartServiceURL,
		settings:       st,
		sessions:       make(map[string]*sessionEntry),
	}
}

// Routes registers the cart endpoints on the router.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/cart", h.viewCart).Methods(http.MethodGet)
	r.HandleFunc("/cart", h.addToCart).Methods(http.MethodPost)
	r.HandleFunc("/cart/update", h.updateItem).Methods(http.MethodPost)
	r.HandleFunc("/cart/remove", h.removeItem).Methods(http.MethodPost)
	r.HandleFunc("/cart/empty", h.emptyCart).Methods(http.MethodPost)
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
}

// service returns the session's cart engine, rebuilding it when the
// session's identity regime changed since the last request. Login replaces
// the guest engine with an authenticated one (triggering migration on its
// first fetch); logout discards the authenticated engine and starts a fresh
// guest cart. A previously migrated guest cart is not restored.
func (h *Handler) service(id cart.Identity) *cart.Service {
	h.mu.Lock()
	defer h.mu.Unlock()

	if e, ok := h.sessions[id.SessionID]; ok && e.authed == id.Authenticated() {
		return e.svc
	}

	store := guestcart.NewStore(h.kv, id.SessionID, h.log)
	var gw cart.Gateway
	if id.Authenticated() {
		gw = gateway.New(h.cartServiceURL, id.Token)
	}
	svc := cart.NewService(h.log, id, store, gw)
	h.sessions[id.SessionID] = &sessionEntry{svc: svc, authed: id.Authenticated()}
	return svc
}

// cartView is the response body for every cart endpoint.
type cartView struct {
	Items        []cart.Item `json:"items"`
	Total        int64       `json:"total"`
	ShippingCost int64       `json:"shippingCost"`
	Loading      bool        `json:"loading"`
	Error        string      `json:"error,omitempty"`
}

func (h *Handler) viewCart(w http.ResponseWriter, r *http.Request) {
	svc := h.service(identityFrom(r.Context()))
	st, err := svc.FetchCart(r.Context())
	h.respond(w, r, st, err)
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	quantity, ok := h.formQuantity(w, r)
	if !ok {
		return
	}
	productID := r.FormValue("product_id")
	if productID == "" {
		http.Error(w, "product_id is required", http.StatusBadRequest)
		return
	}
	price, err := strconv.ParseInt(r.FormValue("price"), 10, 64)
	if err != nil {
		http.Error(w, "invalid price", http.StatusBadRequest)
		return
	}

	svc := h.service(identityFrom(r.Context()))
	st, err := svc.AddItem(r.Context(), cart.Item{
		ProductID: productID,
		Name:      r.FormValue("name"),
		UnitPrice: price,
		Quantity:  quantity,
		ImageURL:  r.FormValue("image_url"),
	})
	h.respond(w, r, st, err)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	quantity, ok := h.formQuantity(w, r)
	if !ok {
		return
	}
	productID := r.FormValue("product_id")
	if productID == "" {
		http.Error(w, "product_id is required", http.StatusBadRequest)
		return
	}

	svc := h.service(identityFrom(r.Context()))
	st, err := svc.UpdateItem(r.Context(), productID, quantity)
	h.respond(w, r, st, err)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	productID := r.FormValue("product_id")
	if productID == "" {
		http.Error(w, "product_id is required", http.StatusBadRequest)
		return
	}
	svc := h.service(identityFrom(r.Context()))
	st, err := svc.RemoveItem(r.Context(), productID)
	h.respond(w, r, st, err)
}

func (h *Handler) emptyCart(w http.ResponseWriter, r *http.Request) {
	svc := h.service(identityFrom(r.Context()))
	st, err := svc.EmptyCart(r.Context())
	h.respond(w, r, st, err)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// formQuantity enforces the quantity floor at the edge: the cart engine
// itself does not validate it. Parsing at 32 bits makes values beyond the
// line-quantity range an error rather than a silent wrap to negative.
func (h *Handler) formQuantity(w http.ResponseWriter, r *http.Request) (int32, bool) {
	quantity, err := strconv.ParseInt(r.FormValue("quantity"), 10, 32)
	if err != nil || quantity < 1 {
		http.Error(w, "quantity must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return int32(quantity), true
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, st cart.State, opErr error) {
	view := cartView{
		Items:        st.Items,
		Total:        st.Total,
		ShippingCost: shipping.Cost(st.Total, h.settings.Shipping(r.Context())),
		Loading:      st.Loading,
		Error:        st.Error,
	}
	if view.Items == nil {
		view.Items = []cart.Item{}
	}

	w.Header().Set("Content-Type", "application/json")
	if opErr != nil {
		// The stale-but-consistent state still ships so the page keeps
		// rendering the last known cart.
		w.WriteHeader(http.StatusBadGateway)
	}
	if err := json.NewEncoder(w).Encode(view); err != nil {
		h.log.WithError(err).Error("failed to encode cart view")
	}
}
