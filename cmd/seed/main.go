package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/joho/godotenv"

	"fraudsentry/internal/config"
	"fraudsentry/internal/models"
)

type flags struct {
	Count       int
	Concurrency int
	FraudRate   float64
	Stream      bool
	Seed        uint64
	Endpoint    string
}

func parseFlags() flags {
	var f flags

	flag.IntVar(&f.Count, "count", 50, "Number of transactions to submit")
	flag.IntVar(&f.Concurrency, "concurrency", 5, "Number of concurrent senders")
	flag.Float64Var(&f.FraudRate, "fraud-rate", 0.2, "Fraction of transactions with risky attributes (0.0 - 1.0)")
	flag.BoolVar(&f.Stream, "stream", false, "Submit via the queued path instead of scoring inline")
	flag.Uint64Var(&f.Seed, "seed", 0, "Faker seed (0 picks a random one)")
	flag.StringVar(&f.Endpoint, "endpoint", config.GetEnv("SEED_ENDPOINT", "http://localhost:8000/api/v1/transactions"), "Transaction submit endpoint")

	flag.Parse()

	if f.FraudRate < 0.0 || f.FraudRate > 1.0 {
		log.Fatal("fraud-rate must be between 0.0 and 1.0")
	}

	return f
}

var (
	transactionTypes = []string{
		models.TransactionTypePurchase,
		models.TransactionTypeWithdrawal,
		models.TransactionTypeTransfer,
		models.TransactionTypeRefund,
	}
	paymentMethods = []string{
		models.PaymentMethodCreditCard,
		models.PaymentMethodDebitCard,
		models.PaymentMethodBankTransfer,
	}
	ordinaryCategories = []string{"Grocery", "Restaurant", "Retail", "Travel", "Electronics"}
	riskyCategories    = []string{"Gambling", "Money Transfer", "ATM"}
	riskyCountries     = []string{"XX", "YY", "ZZ"}
)

type generator struct {
	faker *gofakeit.Faker
	rng   *rand.Rand
}

func (g *generator) ordinary() models.Transaction {
	country := g.faker.CountryAbr()
	return models.Transaction{
		Amount:             g.faker.Price(5, 900),
		Currency:           "USD",
		TransactionType:    transactionTypes[g.rng.Intn(len(transactionTypes))],
		MerchantName:       g.faker.Company(),
		MerchantCategory:   ordinaryCategories[g.rng.Intn(len(ordinaryCategories))],
		MerchantCountry:    country,
		CustomerID:         fmt.Sprintf("cust-%04d", g.rng.Intn(200)),
		CustomerEmail:      g.faker.Email(),
		CardLastFour:       fmt.Sprintf("%04d", g.rng.Intn(10000)),
		PaymentMethod:      paymentMethods[g.rng.Intn(len(paymentMethods))],
		TransactionCountry: country,
		TransactionCity:    g.faker.City(),
		IPAddress:          g.faker.IPv4Address(),
		DeviceID:           g.faker.UUID(),
		DeviceType:         g.faker.RandomString([]string{"mobile", "desktop", "tablet"}),
		Timestamp:          time.Now().UTC(),
	}
}

func (g *generator) risky() models.Transaction {
	tx := g.ordinary()
	tx.Amount = g.faker.Price(6000, 25000)
	tx.MerchantName = "Suspicious " + g.faker.Company()
	tx.MerchantCategory = riskyCategories[g.rng.Intn(len(riskyCategories))]
	tx.MerchantCountry = riskyCountries[g.rng.Intn(len(riskyCountries))]
	tx.PaymentMethod = models.PaymentMethodPrepaidCard
	tx.DeviceID = ""
	tx.IPAddress = ""
	return tx
}

type submitRequest struct {
	models.Transaction
	StreamMode bool `json:"stream_mode"`
}

func send(client *http.Client, endpoint string, req submitRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	resp, err := client.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func main() {
	godotenv.Load()
	f := parseFlags()

	seed := f.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	client := &http.Client{Timeout: 10 * time.Second}
	jobs := make(chan submitRequest)

	var wg sync.WaitGroup
	var mu sync.Mutex
	sent, failed := 0, 0

	for i := 0; i < f.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range jobs {
				err := send(client, f.Endpoint, req)
				mu.Lock()
				if err != nil {
					failed++
					log.Printf("submit failed: %v", err)
				} else {
					sent++
				}
				mu.Unlock()
			}
		}()
	}

	g := &generator{
		faker: gofakeit.New(seed),
		rng:   rand.New(rand.NewSource(int64(seed))),
	}

	for i := 0; i < f.Count; i++ {
		var tx models.Transaction
		if g.rng.Float64() < f.FraudRate {
			tx = g.risky()
		} else {
			tx = g.ordinary()
		}
		jobs <- submitRequest{Transaction: tx, StreamMode: f.Stream}
	}
	close(jobs)
	wg.Wait()

	log.Printf("done: %d sent, %d failed (seed %d)", sent, failed, seed)
}
