package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	defaultBaseURL   = "http://localhost:8080"
	defaultProductID = "P1"
	defaultCustomer  = "C1"
	totalRequests    = 50
	quantityPerOrder = 1
)

type createOrderRequest struct {
	RequestID  string `json:"request_id"`
	CustomerID string `json:"customer_id"`
	Products   []struct {
		ID       string `json:"id"`
		Quantity int    `json:"quantity"`
	} `json:"products"`
}

type availabilityResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getAvailability(client *http.Client, baseURL, productID string) (int, error) {
	resp, err := client.Get(baseURL + "/api/products/" + productID + "/availability")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("availability returned %d", resp.StatusCode)
	}

	var out availabilityResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.Quantity, nil
}

func main() {
	baseURL := envOr("BASE_URL", defaultBaseURL)
	productID := envOr("PRODUCT_ID", defaultProductID)
	customerID := envOr("CUSTOMER_ID", defaultCustomer)

	client := &http.Client{Timeout: 5 * time.Second}

	initialStock, err := getAvailability(client, baseURL, productID)
	if err != nil {
		log.Fatalf("failed to read initial stock: %v", err)
	}

	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req := createOrderRequest{
				RequestID:  uuid.NewString(),
				CustomerID: customerID,
			}
			req.Products = append(req.Products, struct {
				ID       string `json:"id"`
				Quantity int    `json:"quantity"`
			}{ID: productID, Quantity: quantityPerOrder})

			body, _ := json.Marshal(req)
			resp, err := client.Post(baseURL+"/api/orders", "application/json", bytes.NewReader(body))
			if err != nil {
				failCount.Add(1)
				return
			}
			defer resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusCreated:
				successCount.Add(1)
			case http.StatusGone:
				soldOutCount.Add(1)
			default:
				failCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	finalStock, err := getAvailability(client, baseURL, productID)
	if err != nil {
		log.Fatalf("failed to read final stock: %v", err)
	}

	success := successCount.Load()
	soldOut := soldOutCount.Load()
	fail := failCount.Load()

	fmt.Println("========== LOAD TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Created:          %d\n", success)
	fmt.Printf("Sold Out:         %d\n", soldOut)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Final Stock:      %d\n", finalStock)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("=======================================")

	if int(success)*quantityPerOrder == initialStock-finalStock {
		fmt.Println("PASS: stock decremented exactly once per created order")
	} else {
		fmt.Printf("FAIL: %d orders created but stock moved by %d\n",
			success, initialStock-finalStock)
	}

	if finalStock < 0 {
		fmt.Println("FAIL: stock went negative (oversell)")
	} else {
		fmt.Println("PASS: no oversell")
	}
}
