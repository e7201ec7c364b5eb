package mockapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// declinedLast4 is the suffix of the test card that is always declined
const declinedLast4 = "0002"

type payment struct {
	OrderID       int64
	Method        string
	Amount        decimal.Decimal
	TransactionID string
	At            time.Time
}

type cardInfo struct {
	CardNumberLast4 string `json:"cardNumberLast4" binding:"required,len=4,numeric"`
	CardToken       string `json:"cardToken" binding:"required"`
	ExpMonth        int    `json:"expMonth" binding:"required,min=1,max=12"`
	ExpYear         int    `json:"expYear" binding:"required"`
	CardholderName  string `json:"cardholderName" binding:"required"`
}

type cardPaymentRequest struct {
	OrderID    string          `json:"orderId" binding:"required"`
	Amount     decimal.Decimal `json:"amount"`
	CardInfo   cardInfo        `json:"cardInfo" binding:"required"`
	IsDelivery bool            `json:"isDelivery"`
}

type cashPaymentRequest struct {
	OrderID string          `json:"orderId" binding:"required"`
	Amount  decimal.Decimal `json:"amount"`
}

// Payments returns the number of recorded payments
func (s *Server) Payments() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

func (s *Server) processCard(c *gin.Context) {
	var req cardPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.CardInfo.CardNumberLast4 == declinedLast4 {
		c.JSON(http.StatusPaymentRequired, gin.H{"success": false, "error": "Card declined"})
		return
	}

	txn, ok := s.recordPayment(c, req.OrderID, "credit_card", req.Amount)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "transactionId": txn})
}

func (s *Server) registerCash(c *gin.Context) {
	var req cashPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, ok := s.recordPayment(c, req.OrderID, "cash", req.Amount); !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) recordPayment(c *gin.Context, orderID, method string, amount decimal.Decimal) (string, bool) {
	id, err := strconv.ParseInt(orderID, 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()
	o, found := s.orders[id]
	if err != nil || !found {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Order not found"})
		return "", false
	}

	txn := "txn_" + uuid.NewString()
	s.payments = append(s.payments, payment{OrderID: id, Method: method, Amount: amount, TransactionID: txn, At: time.Now().UTC()})
	if method == "credit_card" {
		o.PaymentStatus = "paid"
	} else {
		o.PaymentStatus = "due_on_collection"
	}
	o.UpdatedAt = time.Now().UTC()
	return txn, true
}
