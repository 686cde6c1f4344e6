// Package seed provides the demo dataset: ten tables and a small menu.
package seed

import (
	"fmt"
	"math/rand"

	"github.com/tabletap/tabletap/pkg/order"
)

// MenuItems returns the demo menu.
func MenuItems() []order.MenuItem {
	return []order.MenuItem{
		{ID: 1, Name: "Pizza Margherita", Description: "Classic tomato and mozzarella pizza", Price: 10.99, Category: "Main", Available: true, ImagePath: "images/menu/pizza-margherita.jpg"},
		{ID: 2, Name: "Burger", Description: "Beef patty with cheese and fries", Price: 12.99, Category: "Main", Available: true, ImagePath: "images/menu/burger.jpg"},
		{ID: 3, Name: "Pasta Carbonara", Description: "Spaghetti with creamy sauce, bacon and parmesan", Price: 11.99, Category: "Main", Available: true, ImagePath: "images/menu/pasta-carbonara.jpg"},
		{ID: 4, Name: "Caesar Salad", Description: "Fresh romaine lettuce with parmesan", Price: 8.99, Category: "Starter", Available: true, ImagePath: "images/menu/caesar-salad.jpg"},
		{ID: 5, Name: "Garlic Bread", Description: "Toasted bread with garlic butter", Price: 4.99, Category: "Starter", Available: true, ImagePath: "images/menu/garlic-bread.jpg"},
		{ID: 6, Name: "Soup of the Day", Description: "Ask your server for today's special", Price: 5.99, Category: "Starter", Available: true, ImagePath: "images/menu/soup.jpg"},
		{ID: 7, Name: "Tiramisu", Description: "Classic Italian dessert", Price: 6.99, Category: "Dessert", Available: true, ImagePath: "images/menu/tiramisu.jpg"},
		{ID: 8, Name: "Cheesecake", Description: "New York style cheesecake", Price: 7.99, Category: "Dessert", Available: true, ImagePath: "images/menu/cheesecake.jpg"},
		{ID: 9, Name: "Soft Drink", Description: "Cola, Sprite, Fanta", Price: 2.99, Category: "Drinks", Available: true, ImagePath: "images/menu/soft-drink.jpg"},
		{ID: 10, Name: "Coffee", Description: "Espresso, Cappuccino, Latte", Price: 3.99, Category: "Drinks", Available: true, ImagePath: "images/menu/coffee.jpg"},
	}
}

// Tables returns ten demo tables with randomized capacity.
func Tables() []order.Table {
	tables := make([]order.Table, 0, 10)
	for i := 1; i <= 10; i++ {
		tables = append(tables, order.Table{
			ID:       int64(i),
			Name:     fmt.Sprintf("Table %d", i),
			Capacity: 2 + rand.Intn(7),
			Status:   order.TableAvailable,
		})
	}
	return tables
}
