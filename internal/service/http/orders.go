package httpsvc

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) createOrder(c echo.Context) error {
	var req createOrderRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	order, err := s.orders.PlaceOrder(c.Request().Context(), req.toDomain())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toOrderResponse(order))
}

func (s *Server) listOrders(c echo.Context) error {
	orders, err := s.orders.ListOrders(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) getOrder(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	order, err := s.orders.GetOrder(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(order))
}
