package routing

// Cluster names used by the gateway routes.
const (
	ClusterProducts = "products"
	ClusterOrders   = "orders"
	ClusterPayments = "payments"
	ClusterUsers    = "users"
	ClusterCarts    = "carts"
)

// DefaultClusters is the static route table. Each cluster names the service
// it resolves through the registry.
func DefaultClusters() []Cluster {
	return []Cluster{
		{Name: ClusterProducts, RegistryServiceName: "product-service"},
		{Name: ClusterOrders, RegistryServiceName: "order-service"},
		{Name: ClusterPayments, RegistryServiceName: "payment-service"},
		{Name: ClusterUsers, RegistryServiceName: "user-service"},
		{Name: ClusterCarts, RegistryServiceName: "cart-service"},
	}
}
