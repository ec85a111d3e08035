// Package main provides the Lambda handler for the regional analyzer.
// This is the entry point for AWS Lambda Function URL deployment.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/bschooled/azure-regional-analysis/internal/analyzer"
	"github.com/bschooled/azure-regional-analysis/internal/config"
	"github.com/bschooled/azure-regional-analysis/internal/domain"
)

// CompareRequest is the body of POST /api/compare.
type CompareRequest struct {
	SourceRegion string                 `json:"sourceRegion"`
	TargetRegion string                 `json:"targetRegion"`
	Providers    []string               `json:"providers,omitempty"`
	Inventory    []domain.ResourceTuple `json:"inventory,omitempty"`
}

// CompareResponse is the body of a successful POST /api/compare.
type CompareResponse struct {
	Success      bool                      `json:"success"`
	SourceRegion string                    `json:"sourceRegion"`
	TargetRegion string                    `json:"targetRegion"`
	Records      []domain.ComparisonRecord `json:"records"`
}

// AvailabilityRequest is the body of POST /api/availability.
type AvailabilityRequest struct {
	ResourceType string `json:"resourceType"`
	SKU          string `json:"sku,omitempty"`
	SourceRegion string `json:"sourceRegion"`
	TargetRegion string `json:"targetRegion"`
}

// Handler processes Lambda Function URL requests
func Handler(ctx context.Context, request events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	path := request.RawPath
	method := request.RequestContext.HTTP.Method

	// Log request (goes to CloudWatch)
	fmt.Printf("[%s] %s %s\n", time.Now().Format(time.RFC3339), method, path)

	headers := map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type, Authorization",
		"Content-Type":                 "application/json",
	}

	if method == "OPTIONS" {
		return events.LambdaFunctionURLResponse{
			StatusCode: 200,
			Headers:    headers,
			Body:       "",
		}, nil
	}

	switch {
	case path == "/api/health" && method == "GET":
		return handleHealth()
	case path == "/api/compare" && method == "POST":
		return handleCompare(request.Body)
	case path == "/api/availability" && method == "POST":
		return handleAvailability(request.Body)
	case path == "/api/cache/status" && method == "GET":
		return handleCacheStatus()
	case path == "/api/cache/refresh" && method == "POST":
		return handleCacheRefresh()
	default:
		return events.LambdaFunctionURLResponse{
			StatusCode: 404,
			Headers:    headers,
			Body:       `{"error": "Not found"}`,
		}, nil
	}
}

func handleCompare(body string) (events.LambdaFunctionURLResponse, error) {
	var req CompareRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return jsonResponse(400, map[string]interface{}{
			"success": false,
			"error":   "Invalid request body",
		})
	}
	if req.SourceRegion == "" || req.TargetRegion == "" {
		return jsonResponse(400, map[string]interface{}{
			"success": false,
			"error":   "sourceRegion and targetRegion are required",
		})
	}

	engine, err := analyzer.NewEngine(config.Get())
	if err != nil {
		return jsonResponse(500, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Second)
	defer cancel()

	source, err := engine.ResolveRegion(ctx, req.SourceRegion)
	if err != nil {
		return jsonResponse(400, map[string]interface{}{
			"success": false,
			"error":   fmt.Sprintf("source region: %v", err),
		})
	}
	target, err := engine.ResolveRegion(ctx, req.TargetRegion)
	if err != nil {
		return jsonResponse(400, map[string]interface{}{
			"success": false,
			"error":   fmt.Sprintf("target region: %v", err),
		})
	}

	providers := req.Providers
	if len(providers) == 0 && len(req.Inventory) > 0 {
		providers = analyzer.ProvidersFromInventory(req.Inventory)
	}
	if len(providers) == 0 {
		providers = engine.AllProviders(ctx)
	}

	records := engine.CompareProviders(ctx, source, target, providers)
	return jsonResponse(200, CompareResponse{
		Success:      true,
		SourceRegion: source,
		TargetRegion: target,
		Records:      records,
	})
}

func handleAvailability(body string) (events.LambdaFunctionURLResponse, error) {
	var req AvailabilityRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return jsonResponse(400, map[string]interface{}{
			"success": false,
			"error":   "Invalid request body",
		})
	}
	if req.ResourceType == "" || req.SourceRegion == "" || req.TargetRegion == "" {
		return jsonResponse(400, map[string]interface{}{
			"success": false,
			"error":   "resourceType, sourceRegion and targetRegion are required",
		})
	}

	engine, err := analyzer.NewEngine(config.Get())
	if err != nil {
		return jsonResponse(500, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	source, err := engine.ResolveRegion(ctx, req.SourceRegion)
	if err != nil {
		return jsonResponse(400, map[string]interface{}{
			"success": false,
			"error":   fmt.Sprintf("source region: %v", err),
		})
	}
	target, err := engine.ResolveRegion(ctx, req.TargetRegion)
	if err != nil {
		return jsonResponse(400, map[string]interface{}{
			"success": false,
			"error":   fmt.Sprintf("target region: %v", err),
		})
	}

	verdict := engine.CheckAvailability(ctx, req.ResourceType, req.SKU, source, target)
	return jsonResponse(200, map[string]interface{}{
		"success":      true,
		"resourceType": req.ResourceType,
		"sku":          req.SKU,
		"targetRegion": target,
		"verdict":      verdict,
	})
}

func handleHealth() (events.LambdaFunctionURLResponse, error) {
	cfg := config.Get()
	return jsonResponse(200, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
		"services": map[string]interface{}{
			"azure": map[string]interface{}{
				"credentials": cfg.HasAzureCredentials(),
			},
		},
	})
}

func handleCacheStatus() (events.LambdaFunctionURLResponse, error) {
	engine, err := analyzer.NewEngine(config.Get())
	if err != nil {
		return jsonResponse(500, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
	}
	return jsonResponse(200, engine.CacheStats())
}

func handleCacheRefresh() (events.LambdaFunctionURLResponse, error) {
	engine, err := analyzer.NewEngine(config.Get())
	if err != nil {
		return jsonResponse(500, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
	}
	if err := engine.ClearCache(); err != nil {
		return jsonResponse(500, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
	}
	return jsonResponse(200, map[string]interface{}{
		"success":     true,
		"refreshTime": time.Now().Format(time.RFC3339),
	})
}

func jsonResponse(statusCode int, body interface{}) (events.LambdaFunctionURLResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return events.LambdaFunctionURLResponse{
			StatusCode: 500,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"error": "Failed to marshal response"}`,
		}, nil
	}
	return events.LambdaFunctionURLResponse{
		StatusCode: statusCode,
		Headers: map[string]string{
			"Access-Control-Allow-Origin": "*",
			"Content-Type":                "application/json",
		},
		Body: string(data),
	}, nil
}

func main() {
	lambda.Start(Handler)
}
