package observability

import (
	"context"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const (
	DeliveryVisible    = "visible"
	DeliveryBackground = "background"
	DeliveryDropped    = "dropped"
)

var (
	messagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tranzio_messages_sent_total",
			Help: "Total number of messages composed locally, by whether the transport took them.",
		},
		[]string{"delivery"},
	)
	messagesReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tranzio_messages_received_total",
			Help: "Total number of inbound messages by delivery outcome.",
		},
		[]string{"delivery"},
	)
	dateSeparatorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tranzio_date_separators_total",
			Help: "Total number of date separators inserted into rendered logs.",
		},
	)
	transportConnected = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tranzio_transport_connected",
			Help: "1 when the message transport is connected.",
		},
		[]string{"transport"},
	)
	grpcServerHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tranzio_grpc_server_handled_total",
			Help: "Total number of gRPC requests handled by the server.",
		},
		[]string{"grpc_service", "grpc_method", "grpc_code"},
	)
)

func init() {
	prometheus.MustRegister(
		messagesSentTotal,
		messagesReceivedTotal,
		dateSeparatorsTotal,
		transportConnected,
		grpcServerHandledTotal,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func IncMessageSent(delivered bool) {
	label := "local"
	if delivered {
		label = "delivered"
	}
	messagesSentTotal.WithLabelValues(label).Inc()
}

func IncMessageReceived(delivery string) {
	messagesReceivedTotal.WithLabelValues(delivery).Inc()
}

func IncDateSeparator() {
	dateSeparatorsTotal.Inc()
}

func SetTransportConnected(transport string, connected bool) {
	v := 0.0
	if connected {
		v = 1
	}
	transportConnected.WithLabelValues(transport).Set(v)
}

func GRPCServerMetricsUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		statusInfo := status.Convert(err)
		service, method := splitFullMethod(info.FullMethod)
		grpcServerHandledTotal.WithLabelValues(service, method, statusInfo.Code().String()).Inc()
		return resp, err
	}
}

func splitFullMethod(fullMethod string) (string, string) {
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 3 {
		return "unknown", "unknown"
	}
	return parts[1], parts[2]
}
