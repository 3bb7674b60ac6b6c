package storage

// Statements are shared by both drivers; sqlite and mysql accept ? placeholders.
const (
	insertSale = `INSERT INTO car_sales (
    car_id, sale_date, customer_name, gender, annual_income, phone,
    dealer_name, dealer_no, dealer_region, company, model, body_style,
    engine, transmission, color, price
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectSales = `SELECT
    car_id, sale_date, customer_name, gender, annual_income, phone,
    dealer_name, dealer_no, dealer_region, company, model, body_style,
    engine, transmission, color, price
FROM car_sales ORDER BY car_id`

	deleteAllSales = `DELETE FROM car_sales`

	countSales = `SELECT COUNT(*) FROM car_sales`

	verifyOverview = `SELECT
    COUNT(*),
    COUNT(DISTINCT car_id),
    COUNT(DISTINCT customer_name),
    COUNT(DISTINCT dealer_name),
    COUNT(DISTINCT company),
    COUNT(DISTINCT model),
    MIN(sale_date),
    MAX(sale_date),
    SUM(price),
    AVG(price)
FROM car_sales`

	verifyTopModels = `SELECT company, model, COUNT(*) AS sales
FROM car_sales
GROUP BY company, model
ORDER BY sales DESC, company, model
LIMIT 5`
)
