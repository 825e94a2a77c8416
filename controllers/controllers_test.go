package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"floorops/controllers"
	"floorops/logger"
	"floorops/models"
	"floorops/repository/memory"
	"floorops/routes"
	"floorops/services"
	"floorops/utils"

	"github.com/gin-gonic/gin"
)

type server struct {
	t       *testing.T
	router  *gin.Engine
	pedidos *memory.PedidoStore
	burger  string
	tokens  map[string]string
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	log := logger.Discard()
	loc, _ := time.LoadLocation("America/Sao_Paulo")

	mesas := memory.NewMesaStore()
	pedidos := memory.NewPedidoStore()
	menu := memory.NewMenuStore()
	staff := memory.NewStaffStore()

	tables := services.NewMesaService(mesas, staff, nil, log)
	tables.Areas = memory.NewAreaStore()
	till := services.NewCaixaService(memory.NewCaixaStore(), nil, log)
	till.Location = loc
	orders := services.NewPedidoService(pedidos, tables, menu, nil, log)
	orders.Location = loc
	orders.Sales = till
	split := services.NewSplitService(pedidos, mesas, nil, log)
	split.Sales = till

	burger := &models.MenuItem{Name: "Hamburguer", Price: 10, Available: true}
	if err := menu.Put(ctx, burger); err != nil {
		t.Fatal(err)
	}

	issuer := utils.NewTokenIssuer("test-secret", time.Hour)
	s := &server{t: t, pedidos: pedidos, burger: burger.ID.Hex(), tokens: map[string]string{}}
	hash, _ := utils.HashPassword("senha123")
	for _, role := range []string{models.CargoGarcom, models.CargoCaixa, models.CargoCozinha, models.CargoGerente} {
		f := &models.Funcionario{Name: role, Phone: "phone-" + role, Password: hash, Role: role}
		if err := staff.Insert(ctx, f); err != nil {
			t.Fatal(err)
		}
		token, _ := issuer.GenerateToken(f.ID.Hex(), role, f.Name)
		s.tokens[role] = token
	}

	h := &controllers.Controller{
		Tables:   tables,
		Orders:   orders,
		Split:    split,
		Till:     till,
		Receipts: services.NewReceiptService(pedidos, mesas, nil),
		Staff:    staff,
		Menu:     menu,
		Tokens:   issuer,
		Log:      log,
		Location: loc,
	}
	s.router = gin.New()
	routes.InitializeRoutes(s.router, h, issuer, nil)
	return s
}

func (s *server) do(role, method, path string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+s.tokens[role])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

type errorBody struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details"`
}

func wantStatus(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d: %s", w.Code, status, w.Body.String())
	}
	if code != "" {
		var e errorBody
		decode(t, w, &e)
		if e.Code != code {
			t.Fatalf("code = %q, want %q", e.Code, code)
		}
	}
}

// openTable creates table n and seats two clients on it.
func (s *server) openTable(n int) models.Mesa {
	s.t.Helper()
	w := s.do(models.CargoGerente, http.MethodPost, "/mesas", gin.H{"numero": n, "capacidade": 4})
	wantStatus(s.t, w, http.StatusCreated, "")
	var m models.Mesa
	decode(s.t, w, &m)

	w = s.do(models.CargoGarcom, http.MethodPost, "/mesas/"+m.ID.Hex()+"/ocupar", gin.H{"clientes": 2})
	wantStatus(s.t, w, http.StatusOK, "")
	decode(s.t, w, &m)
	return m
}

func (s *server) createOrder(m models.Mesa, qty int) models.Pedido {
	s.t.Helper()
	w := s.do(models.CargoGarcom, http.MethodPost, "/pedidos", gin.H{
		"mesa":  m.ID.Hex(),
		"itens": []gin.H{{"produto": s.burger, "quantidade": qty}},
	})
	wantStatus(s.t, w, http.StatusCreated, "")
	var p models.Pedido
	decode(s.t, w, &p)
	return p
}

func TestLogin(t *testing.T) {
	s := newServer(t)

	w := s.do("", http.MethodPost, "/login", gin.H{"telefone": "phone-caixa", "senha": "senha123"})
	wantStatus(t, w, http.StatusOK, "")
	var out struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	decode(t, w, &out)
	if out.Token == "" || out.Role != models.CargoCaixa {
		t.Errorf("login = %+v", out)
	}

	w = s.do("", http.MethodPost, "/login", gin.H{"telefone": "phone-caixa", "senha": "wrong"})
	wantStatus(t, w, http.StatusUnauthorized, "")
	w = s.do("", http.MethodPost, "/login", gin.H{"telefone": "nobody", "senha": "senha123"})
	wantStatus(t, w, http.StatusUnauthorized, "")
}

func TestTableErrorsMapToStatus(t *testing.T) {
	s := newServer(t)
	m := s.openTable(1)

	w := s.do(models.CargoGarcom, http.MethodPost, "/mesas/"+m.ID.Hex()+"/ocupar", gin.H{"clientes": 2})
	wantStatus(t, w, http.StatusBadRequest, "NotAvailable")

	w = s.do(models.CargoGerente, http.MethodPost, "/mesas", gin.H{"numero": 1})
	wantStatus(t, w, http.StatusBadRequest, "DuplicateNumber")

	w = s.do(models.CargoGerente, http.MethodPost, "/mesas", gin.H{"numero": 7, "capacidade": 0})
	wantStatus(t, w, http.StatusBadRequest, "InvalidCapacity")

	w = s.do(models.CargoGerente, http.MethodPost, "/mesas", gin.H{"numero": 8})
	wantStatus(t, w, http.StatusCreated, "")
	var def models.Mesa
	decode(t, w, &def)
	if def.Capacity != 4 {
		t.Errorf("capacity without capacidade = %d, want 4", def.Capacity)
	}

	w = s.do(models.CargoGarcom, http.MethodGet, "/mesas/000000000000000000000001", nil)
	wantStatus(t, w, http.StatusNotFound, "TableNotFound")

	w = s.do(models.CargoGarcom, http.MethodGet, "/mesas/not-an-id", nil)
	wantStatus(t, w, http.StatusBadRequest, "InvalidID")

	w = s.do(models.CargoGarcom, http.MethodPost, "/mesas", gin.H{"numero": 9})
	wantStatus(t, w, http.StatusForbidden, "")

	w = s.do("", http.MethodGet, "/mesas", nil)
	wantStatus(t, w, http.StatusUnauthorized, "")
}

func TestOrderPaymentFlow(t *testing.T) {
	s := newServer(t)
	m := s.openTable(1)
	p := s.createOrder(m, 2)
	if p.Total != 22 {
		t.Fatalf("total = %v, want 22", p.Total)
	}

	w := s.do(models.CargoCaixa, http.MethodPost, "/caixa/abrir", gin.H{"valorInicial": 100})
	wantStatus(t, w, http.StatusCreated, "")

	w = s.do(models.CargoCaixa, http.MethodPost, "/pedidos/"+p.ID.Hex()+"/pagamento", gin.H{"formaPagamento": "vale"})
	wantStatus(t, w, http.StatusBadRequest, "InvalidMethod")

	w = s.do(models.CargoCaixa, http.MethodPost, "/pedidos/"+p.ID.Hex()+"/pagamento", gin.H{"formaPagamento": models.PagamentoPix})
	wantStatus(t, w, http.StatusOK, "")

	w = s.do(models.CargoCaixa, http.MethodPost, "/pedidos/"+p.ID.Hex()+"/pagamento", gin.H{"formaPagamento": models.PagamentoPix})
	wantStatus(t, w, http.StatusBadRequest, "AlreadyPaid")

	w = s.do(models.CargoCaixa, http.MethodGet, "/pedidos/"+p.ID.Hex()+"/recibo", nil)
	wantStatus(t, w, http.StatusOK, "")
	var r services.Receipt
	decode(t, w, &r)
	if r.Client != "Consumidor" || r.TableNumber != 1 {
		t.Errorf("receipt = %+v", r)
	}

	w = s.do(models.CargoCaixa, http.MethodGet, "/caixa/atual", nil)
	wantStatus(t, w, http.StatusOK, "")
	var c models.Caixa
	decode(t, w, &c)
	if c.Sales.Total != 22 || c.Sales.Count != 1 {
		t.Errorf("till sales = %+v", c.Sales)
	}

	w = s.do(models.CargoCaixa, http.MethodPost, "/pedidos/"+p.ID.Hex()+"/recibo", nil)
	wantStatus(t, w, http.StatusServiceUnavailable, "")
}

func TestSplitPayment(t *testing.T) {
	s := newServer(t)
	m := s.openTable(1)
	s.createOrder(m, 2)
	path := "/mesas/" + m.ID.Hex() + "/pagamento-dividido"

	w := s.do(models.CargoCaixa, http.MethodPost, path, gin.H{
		"pagantes": []gin.H{{"nome": "Ana", "forma": "pix", "valor": 10}},
	})
	wantStatus(t, w, http.StatusBadRequest, "AmountMismatch")
	var e errorBody
	decode(t, w, &e)
	if e.Details["totalDevido"] != 20.0 || e.Details["totalPago"] != 10.0 {
		t.Errorf("details = %v", e.Details)
	}

	w = s.do(models.CargoCaixa, http.MethodPost, path, gin.H{
		"pagantes": []gin.H{
			{"nome": "Ana", "forma": "pix", "valor": 10},
			{"nome": "Bia", "forma": "dinheiro", "valor": 10, "valorRecebido": 20},
		},
	})
	wantStatus(t, w, http.StatusOK, "")
	var res services.SplitResult
	decode(t, w, &res)
	if len(res.Orders) != 1 || res.Orders[0].Status != models.PedidoPago || res.Orders[0].PaymentMethod != models.PagamentoOutro {
		t.Errorf("result = %+v", res)
	}
}

func TestSplitPaymentPartialFailure(t *testing.T) {
	s := newServer(t)
	m := s.openTable(1)
	s.createOrder(m, 1)
	second := s.createOrder(m, 1)
	s.pedidos.FailReplace = func(p *models.Pedido) error {
		if p.ID == second.ID {
			return errors.New("write failed")
		}
		return nil
	}

	w := s.do(models.CargoCaixa, http.MethodPost, "/mesas/"+m.ID.Hex()+"/pagamento-dividido", gin.H{
		"pagantes": []gin.H{{"nome": "Ana", "forma": "pix", "valor": 20}},
	})
	wantStatus(t, w, http.StatusMultiStatus, "PartialSplitPayment")
	var out struct {
		Result services.SplitResult `json:"result"`
	}
	decode(t, w, &out)
	if len(out.Result.Orders) != 1 || len(out.Result.Failed) != 1 {
		t.Errorf("result = %+v", out.Result)
	}
}

func TestKitchenItemStatus(t *testing.T) {
	s := newServer(t)
	m := s.openTable(1)
	p := s.createOrder(m, 1)
	itemPath := "/pedidos/" + p.ID.Hex() + "/itens/" + p.Items[0].ID + "/status"

	w := s.do(models.CargoCozinha, http.MethodPut, itemPath, gin.H{"status": models.ItemPronto})
	wantStatus(t, w, http.StatusOK, "")

	w = s.do(models.CargoCozinha, http.MethodPut, "/pedidos/"+p.ID.Hex()+"/itens/nope/status", gin.H{"status": models.ItemPronto})
	wantStatus(t, w, http.StatusNotFound, "ItemNotFound")

	w = s.do(models.CargoCozinha, http.MethodPost, "/pedidos/"+p.ID.Hex()+"/fechar", nil)
	wantStatus(t, w, http.StatusForbidden, "")
}

func TestTillEndpoints(t *testing.T) {
	s := newServer(t)

	w := s.do(models.CargoCaixa, http.MethodGet, "/caixa/atual", nil)
	wantStatus(t, w, http.StatusBadRequest, "NoOpenSession")

	w = s.do(models.CargoCaixa, http.MethodPost, "/caixa/abrir", gin.H{"valorInicial": 100})
	wantStatus(t, w, http.StatusCreated, "")
	w = s.do(models.CargoCaixa, http.MethodPost, "/caixa/abrir", gin.H{"valorInicial": 100})
	wantStatus(t, w, http.StatusBadRequest, "AlreadyOpen")

	w = s.do(models.CargoCaixa, http.MethodPost, "/caixa/sangria", gin.H{"valor": 20, "motivo": "troco"})
	wantStatus(t, w, http.StatusOK, "")
	w = s.do(models.CargoCaixa, http.MethodPost, "/caixa/reforco", gin.H{"valor": 10})
	wantStatus(t, w, http.StatusBadRequest, "MissingReason")

	w = s.do(models.CargoCaixa, http.MethodPost, "/caixa/fechar", gin.H{"valorFinal": 75})
	wantStatus(t, w, http.StatusOK, "")
	var c models.Caixa
	decode(t, w, &c)
	if c.ExpectedAmount != 80 || c.Variance != -5 {
		t.Errorf("expected = %v, variance = %v", c.ExpectedAmount, c.Variance)
	}

	w = s.do(models.CargoCaixa, http.MethodGet, "/caixa?de=2026-13-01", nil)
	wantStatus(t, w, http.StatusBadRequest, "InvalidDate")

	w = s.do(models.CargoGerente, http.MethodGet, "/relatorios/caixa", nil)
	wantStatus(t, w, http.StatusOK, "")
	var report services.CaixaReport
	decode(t, w, &report)
	if report.Sessions != 1 || report.TotalCashOuts != 20 {
		t.Errorf("report = %+v", report)
	}
}
