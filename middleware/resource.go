package middleware

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// unknownService is the default service name when detection fails
const unknownService = "unknown-service"

// serviceAccountNamespaceFile is mounted into every Kubernetes pod.
const serviceAccountNamespaceFile = "/var/run/secrets/kubernetes.io/serviceaccount/namespace"

// detectServiceInfo resolves the service name and namespace reported to
// tracing and profiling backends. Priority for the name:
//  1. OTEL_SERVICE_NAME
//  2. configured SERVICE_NAME (fallback argument)
//  3. POD_NAME / hostname with the deployment hashes stripped
//
// For the namespace: OTEL_RESOURCE_ATTRIBUTES service.namespace, the service
// account file, POD_NAMESPACE, then "default".
func detectServiceInfo(fallback string) (serviceName, namespace string) {
	serviceName = os.Getenv("OTEL_SERVICE_NAME")
	if serviceName == "" {
		serviceName = fallback
	}
	if serviceName == "" {
		serviceName = serviceFromPodName()
	}
	if serviceName == "" {
		serviceName = unknownService
	}

	if attrs := os.Getenv("OTEL_RESOURCE_ATTRIBUTES"); attrs != "" {
		for _, attr := range strings.Split(attrs, ",") {
			k, v, ok := strings.Cut(attr, "=")
			if ok && strings.TrimSpace(k) == "service.namespace" {
				return serviceName, strings.TrimSpace(v)
			}
		}
	}
	if data, err := os.ReadFile(serviceAccountNamespaceFile); err == nil {
		return serviceName, strings.TrimSpace(string(data))
	}
	if ns := os.Getenv("POD_NAMESPACE"); ns != "" {
		return serviceName, ns
	}
	return serviceName, "default"
}

// serviceFromPodName strips "<replicaset-hash>-<pod-hash>" from the pod name,
// e.g. "profile-75c98b4b9c-kdv2n" -> "profile".
func serviceFromPodName() string {
	podName := os.Getenv("POD_NAME")
	if podName == "" {
		podName, _ = os.Hostname()
	}
	if podName == "" {
		return ""
	}
	parts := strings.Split(podName, "-")
	if len(parts) >= 3 {
		return strings.Join(parts[:len(parts)-2], "-")
	}
	return parts[0]
}

// CreateResource creates an OpenTelemetry resource with auto-detected attributes
func CreateResource(ctx context.Context, fallbackName, version string) (*resource.Resource, error) {
	serviceName, namespace := detectServiceInfo(fallbackName)

	res, err := resource.New(
		ctx,
		resource.WithFromEnv(),   // Read OTEL_* env vars if set
		resource.WithProcess(),   // Add process info (PID, executable path)
		resource.WithOS(),        // Add OS info
		resource.WithContainer(), // Add container ID if running in container
		resource.WithHost(),      // Add hostname
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceNamespaceKey.String(namespace),
			semconv.ServiceVersionKey.String(version),
		),
	)

	if err != nil {
		// If resource creation fails, create minimal resource
		return resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceNamespaceKey.String(namespace),
			semconv.ServiceVersionKey.String(version),
		), fmt.Errorf("resource detection partial failure (using fallback): %w", err)
	}

	return res, nil
}

// GetServiceName extracts service name from a resource
func GetServiceName(res *resource.Resource) string {
	for _, attr := range res.Attributes() {
		if attr.Key == semconv.ServiceNameKey {
			return attr.Value.AsString()
		}
	}
	return unknownService
}
