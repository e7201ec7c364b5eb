package mockapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bistro/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type order struct {
	ID                  int64              `json:"id"`
	OrderNumber         string             `json:"orderNumber"`
	Status              models.OrderStatus `json:"status"`
	CustomerName        string             `json:"customerName"`
	ContactPhone        string             `json:"contactPhone"`
	Email               string             `json:"email,omitempty"`
	Items               []models.OrderItem `json:"items"`
	IsDelivery          bool               `json:"isDelivery"`
	DeliveryAddress     string             `json:"deliveryAddress,omitempty"`
	TableNumber         string             `json:"tableNumber,omitempty"`
	PaymentMethod       string             `json:"paymentMethod"`
	PaymentStatus       string             `json:"paymentStatus"`
	SpecialInstructions string             `json:"specialInstructions,omitempty"`
	Subtotal            decimal.Decimal    `json:"subtotal"`
	Tax                 decimal.Decimal    `json:"tax"`
	Total               decimal.Decimal    `json:"total"`
	CreatedAt           time.Time          `json:"createdAt"`
	UpdatedAt           time.Time          `json:"updatedAt"`
}

type createOrderRequest struct {
	CustomerName        string             `json:"customerName" binding:"required"`
	ContactPhone        string             `json:"contactPhone" binding:"required"`
	Email               string             `json:"email"`
	Items               []models.OrderItem `json:"items" binding:"required,min=1"`
	IsDelivery          bool               `json:"isDelivery"`
	DeliveryAddress     string             `json:"deliveryAddress"`
	TableNumber         string             `json:"tableNumber"`
	PaymentMethod       string             `json:"paymentMethod" binding:"required,oneof=cash credit_card"`
	SpecialInstructions string             `json:"specialInstructions"`
	Subtotal            decimal.Decimal    `json:"subtotal"`
	Tax                 decimal.Decimal    `json:"tax"`
	Total               decimal.Decimal    `json:"total"`
	DeliveryType        string             `json:"deliveryType" binding:"required,eq=STANDARD"`
}

// Orders returns copies of all stored orders, oldest first
func (s *Server) Orders() []models.SubmittedOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SubmittedOrder, 0, len(s.orderIDs))
	for _, id := range s.orderIDs {
		o := s.orders[id]
		out = append(out, models.SubmittedOrder{
			ID:           strconv.FormatInt(o.ID, 10),
			OrderNumber:  o.OrderNumber,
			Status:       o.Status,
			CustomerName: o.CustomerName,
			Total:        o.Total,
			Items:        append([]models.OrderItem(nil), o.Items...),
			CreatedAt:    o.CreatedAt,
			UpdatedAt:    o.UpdatedAt,
		})
	}
	return out
}

func (s *Server) lookup(c *gin.Context) (*order, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return nil, false
	}
	o, ok := s.orders[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return nil, false
	}
	return o, true
}

// listOrders retrieves all orders, oldest first
func (s *Server) listOrders(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]order, 0, len(s.orderIDs))
	for _, id := range s.orderIDs {
		out = append(out, *s.orders[id])
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": out})
}

func (s *Server) getOrder(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": o})
}

// createOrder validates the order, recomputes its totals and stores it as
// pending
func (s *Server) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.IsDelivery && req.DeliveryAddress == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Delivery address is required"})
		return
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 || item.Price.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid item %q", item.Name)})
			return
		}
	}

	subtotal, tax, total := models.ComputeTotals(req.Items, s.opts.TaxRate)
	now := time.Now().UTC()

	s.mu.Lock()
	s.nextID++
	o := &order{
		ID:                  s.nextID,
		OrderNumber:         fmt.Sprintf("BST-%d", s.nextID),
		Status:              models.OrderStatusPending,
		CustomerName:        req.CustomerName,
		ContactPhone:        req.ContactPhone,
		Email:               req.Email,
		Items:               req.Items,
		IsDelivery:          req.IsDelivery,
		DeliveryAddress:     req.DeliveryAddress,
		TableNumber:         req.TableNumber,
		PaymentMethod:       req.PaymentMethod,
		PaymentStatus:       "unpaid",
		SpecialInstructions: req.SpecialInstructions,
		Subtotal:            subtotal,
		Tax:                 tax,
		Total:               total,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	s.orders[o.ID] = o
	s.orderIDs = append(s.orderIDs, o.ID)
	created := *o
	s.mu.Unlock()

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": created})
}

type updateOrderRequest struct {
	CustomerName        string             `json:"customerName"`
	Status              models.OrderStatus `json:"status"`
	SpecialInstructions string             `json:"specialInstructions"`
}

func (s *Server) updateOrder(c *gin.Context) {
	var req updateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Status != "" && !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	s.mu.Lock()
	o, ok := s.lookup(c)
	if !ok {
		s.mu.Unlock()
		return
	}
	if req.CustomerName != "" {
		o.CustomerName = req.CustomerName
	}
	if req.SpecialInstructions != "" {
		o.SpecialInstructions = req.SpecialInstructions
	}
	statusChanged := req.Status != "" && req.Status != o.Status
	if req.Status != "" {
		o.Status = req.Status
	}
	o.UpdatedAt = time.Now().UTC()
	updated := *o
	s.mu.Unlock()

	if statusChanged {
		s.broadcastStatus(updated.ID, updated.Status)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": updated})
}

type statusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

// updateOrderStatus answers without echoing the order, like the production
// backend does
func (s *Server) updateOrderStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	s.mu.Lock()
	o, ok := s.lookup(c)
	if !ok {
		s.mu.Unlock()
		return
	}
	if o.Status == models.OrderStatusCancelled || o.Status == models.OrderStatusCompleted {
		s.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Order is already %s", o.Status)})
		return
	}
	o.Status = req.Status
	o.UpdatedAt = time.Now().UTC()
	id := o.ID
	s.mu.Unlock()

	s.broadcastStatus(id, req.Status)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Order status updated"})
}

func (s *Server) deleteOrder(c *gin.Context) {
	s.mu.Lock()
	o, ok := s.lookup(c)
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.orders, o.ID)
	for i, id := range s.orderIDs {
		if id == o.ID {
			s.orderIDs = append(s.orderIDs[:i], s.orderIDs[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"message": "Order deleted successfully"})
}
