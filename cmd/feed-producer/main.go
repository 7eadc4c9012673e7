package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"

	"github.com/roster-engine/internal/domain"
)

var firstNames = []string{
	"Lena", "Noah", "Mia", "Elias", "Emma", "Louis", "Sofia", "Liam", "Alina", "Gabriel",
	"Nora", "Matteo", "Elina", "Leon", "Zoe", "David", "Lea", "Julian", "Mila", "Samuel",
}

var lastNames = []string{
	"Moser", "Keller", "Meier", "Schmid", "Weber", "Favre", "Rochat", "Bernasconi", "Huber", "Steiner",
}

var venues = []string{"Lausanne", "Geneva", "Nyon", "Montreux", "Vevey"}

var ageGroups = []string{"3-5y", "6-10y", "11-15y"}

// Monday week starts across the summer season.
var weekStarts = []string{
	"2026-07-06", "2026-07-13", "2026-07-20", "2026-07-27",
	"2026-08-03", "2026-08-10", "2026-08-17",
}

var statuses = []string{"processing", "completed", "on-hold"}

func makeRecord(orderID int64, itemIdx, playerIdx int) domain.OrderRecord {
	week := weekStarts[rand.Intn(len(weekStarts))]
	start, _ := time.Parse("2006-01-02", week)
	end := start.AddDate(0, 0, 4)

	first := firstNames[rand.Intn(len(firstNames))]
	last := lastNames[rand.Intn(len(lastNames))]

	// Pick an age inside the group's window so the participant is
	// eligible at the event start.
	ageGroup := ageGroups[rand.Intn(len(ageGroups))]
	ageRange, _ := domain.ParseAgeRange(ageGroup)
	age := ageRange.Min + rand.Intn(ageRange.Max-ageRange.Min+1)
	dob := start.AddDate(-age, 0, -rand.Intn(300)).Format("2006-01-02")

	gender := "male"
	if rand.Intn(2) == 0 {
		gender = "female"
	}

	bookingType := string(domain.BookingFullWeek)
	var days []string
	if rand.Intn(4) == 0 {
		bookingType = string(domain.BookingSingleDays)
		days = []string{"Monday", "Wednesday"}
	}

	return domain.OrderRecord{
		OrderID:      orderID,
		OrderItemID:  orderID*10 + int64(itemIdx),
		ProductID:    int64(100 + rand.Intn(20)),
		CustomerID:   orderID % 500,
		PlayerIndex:  playerIdx,
		ActivityType: string(domain.ActivityCamp),
		Venue:        venues[rand.Intn(len(venues))],
		AgeGroup:     ageGroup,
		StartDate:    start.Format("2006-01-02"),
		EndDate:      end.Format("2006-01-02"),
		BookingType:  bookingType,
		SelectedDays: days,
		Season:       "Summer 2026",
		Region:       "Vaud",
		ParentEmail:  fmt.Sprintf("%s.%s@example.com", strings.ToLower(first), strings.ToLower(last)),
		ParentPhone:  fmt.Sprintf("+4179%07d", rand.Intn(10000000)),
		OrderStatus:  statuses[rand.Intn(len(statuses))],
		Player: map[string]string{
			"first_name":    first,
			"last_name":     last,
			"date_of_birth": dob,
			"gender":        gender,
		},
	}
}

func main() {
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "roster-orders", "Kafka topic")
	totalOrders := flag.Int("orders", 500, "Number of orders to create")
	updatesPerSecond := flag.Int("rate", 50, "Status updates per second after the initial load")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	initialOnly := flag.Bool("initial-only", false, "Only publish the initial orders, no status updates")
	flag.Parse()

	brokerList := strings.Split(*brokers, ",")

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("  Roster Order Feed Producer")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Brokers:      %s\n", *brokers)
	fmt.Printf("  Topic:        %s\n", *topic)
	fmt.Printf("  Orders:       %d\n", *totalOrders)
	fmt.Printf("  Updates/sec:  %d\n", *updatesPerSecond)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	sendRecord := func(rec domain.OrderRecord) {
		data, err := json.Marshal(rec)
		if err != nil {
			log.Printf("Failed to marshal record: %v", err)
			return
		}

		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(strconv.FormatInt(rec.OrderID, 10)),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- msg:
		case <-done:
			return
		}
	}

	// Keep the published records around so status updates can replay
	// real natural keys instead of inventing new orders.
	records := make([]domain.OrderRecord, 0, *totalOrders*2)

	fmt.Printf("Publishing %d initial orders...\n", *totalOrders)
	for i := 0; i < *totalOrders; i++ {
		orderID := int64(1000 + i)
		// Roughly a third of orders carry a sibling on the same item.
		players := 1
		if rand.Intn(3) == 0 {
			players = 2
		}
		for p := 0; p < players; p++ {
			rec := makeRecord(orderID, 1, p)
			records = append(records, rec)
			sendRecord(rec)
		}

		if (i+1)%100 == 0 || i+1 == *totalOrders {
			fmt.Printf("\r  Progress: %d/%d orders", i+1, *totalOrders)
		}
	}
	fmt.Printf("\n✓ Published %d records across %d orders\n\n", len(records), *totalOrders)

	if *initialOnly {
		fmt.Println("Initial-only mode: Exiting after publishing orders")
		close(done)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("\n✓ Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
		return
	}

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Starting status updates (%d/sec)\n", *updatesPerSecond)
	fmt.Println("Re-publishes existing orders with a new status to exercise upserts")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	interval := time.Second / time.Duration(*updatesPerSecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	var updateCount int64

	for {
		select {
		case <-sigChan:
			fmt.Println("\n\nShutting down...")
			close(done)
			producer.AsyncClose()
			wg.Wait()
			fmt.Printf("\n✓ Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				fmt.Println("\n\nDuration reached, shutting down...")
				close(done)
				producer.AsyncClose()
				wg.Wait()
				fmt.Printf("\n✓ Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
				return
			}

			rec := records[rand.Intn(len(records))]
			rec.OrderStatus = statuses[rand.Intn(len(statuses))]
			sendRecord(rec)
			atomic.AddInt64(&updateCount, 1)

		case <-statsTicker.C:
			updates := atomic.LoadInt64(&updateCount)
			success := atomic.LoadInt64(&successCount)
			errors := atomic.LoadInt64(&errorCount)
			fmt.Printf("[%s] Updates: %d | Sent: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				updates,
				success,
				errors,
			)
		}
	}
}
