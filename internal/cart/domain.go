package cart

import "time"

type Cart struct {
	OwnerKey  string     `bson:"owner_key" json:"owner"`
	Items     []CartItem `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

type CartItem struct {
	ProductID   int64     `bson:"product_id" json:"product_id"`
	Quantity    int       `bson:"quantity" json:"quantity"`
	UnitPrice   float64   `bson:"unit_price" json:"unit_price"`
	ProductName string    `bson:"product_name" json:"product_name"`
	ImageURL    string    `bson:"image_url" json:"image_url,omitempty"`
	AddedAt     time.Time `bson:"added_at" json:"added_at"`
}

// View is the cart as returned to callers, with totals derived fresh from
// the items rather than stored.
type View struct {
	OwnerKey  string     `json:"owner"`
	Items     []CartItem `json:"items"`
	Total     float64    `json:"total"`
	ItemCount int        `json:"item_count"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (c *Cart) Total() float64 {
	var total float64
	for _, item := range c.Items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	return total
}

func (c *Cart) ItemCount() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

func (c *Cart) Find(productID int64) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}

func (c *Cart) AsView() *View {
	return &View{
		OwnerKey:  c.OwnerKey,
		Items:     c.Items,
		Total:     c.Total(),
		ItemCount: c.ItemCount(),
		UpdatedAt: c.UpdatedAt,
	}
}
