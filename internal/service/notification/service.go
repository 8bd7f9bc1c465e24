package notification

import (
	"fmt"
	"sync"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/inventory-api/internal/model"
	"github.com/jwalitptl/inventory-api/pkg/circuitbreaker"
	"github.com/jwalitptl/inventory-api/pkg/logger"
)

// alertCooldown suppresses repeat alerts for the same SKU while it stays
// below its threshold.
const alertCooldown = time.Hour

// SMTPConfig carries the mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// Service sends low-stock alert emails. Delivery is best effort: a dead
// relay must never block event consumption, so failures are logged and
// the breaker stops us hammering it.
type Service struct {
	dialer  *gomail.Dialer
	config  SMTPConfig
	breaker *circuitbreaker.CircuitBreaker
	logger  *logger.Logger

	mu        sync.Mutex
	lastAlert map[string]time.Time
}

func NewService(cfg SMTPConfig, log *logger.Logger) *Service {
	return &Service{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		config: cfg,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "smtp",
			MaxFailures: 3,
			Timeout:     time.Minute,
		}),
		logger:    log,
		lastAlert: make(map[string]time.Time),
	}
}

// Enabled reports whether a relay is configured at all.
func (s *Service) Enabled() bool {
	return s.config.Host != "" && len(s.config.To) > 0
}

// NotifyLowStock emails the operators that an item fell to or below its
// threshold. Errors are swallowed after logging.
func (s *Service) NotifyLowStock(stock *model.Stock) {
	if !s.Enabled() {
		return
	}
	if !s.shouldAlert(stock.SKU) {
		return
	}

	subject := fmt.Sprintf("Low stock alert: %s", stock.SKU)
	body := fmt.Sprintf(
		"Stock for SKU %s dropped to %d units (threshold %d).\nProduct ID: %d",
		stock.SKU, stock.Quantity, stock.MinThreshold, stock.ProductID)

	err := s.breaker.Execute(func() error {
		m := gomail.NewMessage()
		m.SetHeader("From", s.config.From)
		m.SetHeader("To", s.config.To...)
		m.SetHeader("Subject", subject)
		m.SetBody("text/plain", body)
		return s.dialer.DialAndSend(m)
	})
	if err != nil {
		s.logger.WarnErr(err, "low stock alert not sent", "sku", stock.SKU)
		s.clearAlert(stock.SKU)
		return
	}
	s.logger.Info("low stock alert sent", "sku", stock.SKU, "quantity", stock.Quantity)
}

func (s *Service) shouldAlert(sku string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastAlert[sku]; ok && time.Since(last) < alertCooldown {
		return false
	}
	s.lastAlert[sku] = time.Now()
	return true
}

func (s *Service) clearAlert(sku string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lastAlert, sku)
}
