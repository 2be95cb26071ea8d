package api

import "html/template"

type pageRow struct {
	Price    string
	Quantity string
}

type pageData struct {
	Bids []pageRow
	Asks []pageRow
}

var bookPage = template.Must(template.New("book").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Order Book</title>
    <style>
        table { width: 50%; border-collapse: collapse; margin: 20px; }
        table, th, td { border: 1px solid black; }
        th, td { padding: 10px; text-align: center; }
    </style>
</head>
<body>
    <h1>Order Book</h1>
    <div style="display: flex; justify-content: space-around;">
        <div>
            <h2>Bid</h2>
            <table>
                <tr><th>Quantity</th><th>Price</th></tr>
                {{range .Bids}}<tr><td>{{.Quantity}}</td><td>{{.Price}}</td></tr>
                {{end}}
            </table>
        </div>
        <div>
            <h2>Ask</h2>
            <table>
                <tr><th>Quantity</th><th>Price</th></tr>
                {{range .Asks}}<tr><td>{{.Quantity}}</td><td>{{.Price}}</td></tr>
                {{end}}
            </table>
        </div>
    </div>
</body>
</html>
`))

func pageRows(rows [][]string) []pageRow {
	out := make([]pageRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, pageRow{Price: r[0], Quantity: r[1]})
	}
	return out
}
