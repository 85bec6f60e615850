package httpsvc

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/catalog"
)

func (s *Server) createSeller(c echo.Context) error {
	var req createSellerRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	seller, err := s.catalog.CreateSeller(c.Request().Context(), catalog.CreateSellerInput{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toSellerResponse(seller))
}

func (s *Server) listSellers(c echo.Context) error {
	sellers, err := s.catalog.ListSellers(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]sellerResponse, 0, len(sellers))
	for _, seller := range sellers {
		out = append(out, toSellerResponse(seller))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) createProduct(c echo.Context) error {
	var req createProductRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	stock := 0
	if req.Stock != nil {
		stock = *req.Stock
	}
	product, err := s.catalog.CreateProduct(c.Request().Context(), catalog.CreateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Stock:       stock,
		Category:    req.Category,
		SellerID:    req.SellerID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toProductResponse(product))
}

func (s *Server) listProducts(c echo.Context) error {
	return s.respondProducts(c, domain.ProductFilter{Category: c.QueryParam("category")})
}

func (s *Server) listProductsByCategory(c echo.Context) error {
	category, err := url.PathUnescape(c.Param("category"))
	if err != nil {
		return domain.NewValidationError("category", "is malformed")
	}
	return s.respondProducts(c, domain.ProductFilter{Category: category})
}

func (s *Server) respondProducts(c echo.Context, filter domain.ProductFilter) error {
	products, err := s.catalog.ListProducts(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProductResponses(products))
}

func (s *Server) getProduct(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	product, err := s.catalog.GetProduct(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProductResponse(product))
}

func (s *Server) updateProduct(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req updateProductRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	product, err := s.catalog.UpdateProduct(c.Request().Context(), id, req.toPatch())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProductResponse(product))
}

func (s *Server) deleteProduct(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := s.catalog.DeleteProduct(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listCategories(c echo.Context) error {
	categories, err := s.catalog.Categories(c.Request().Context())
	if err != nil {
		return err
	}
	if categories == nil {
		categories = []string{}
	}
	return c.JSON(http.StatusOK, categories)
}
