// Seeds the products collection with the stationery shop catalogue.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/panzaverde/storefront/internal/catalog"
	"github.com/panzaverde/storefront/internal/config"
	"github.com/panzaverde/storefront/internal/docstore"
)

var seedProducts = []catalog.Product{
	{
		Name:        "Cuaderno Rivadavia A4 Rayado",
		Description: "Cuaderno tapa dura A4 de 84 hojas rayadas. Ideal para estudiantes y profesionales.",
		Price:       decimal.NewFromInt(850),
		Category:    "escolar",
		Image:       "/img/cuaderno-rivadavia.webp",
		Stock:       50,
		IsAvailable: true,
	},
	{
		Name:        "Lapiceras BIC Cristal Pack x3",
		Description: "Pack de 3 lapiceras BIC Cristal azules. Clásicas y confiables para uso diario.",
		Price:       decimal.NewFromInt(420),
		Category:    "libreria",
		Image:       "/img/lapiceras-color-bic.jpeg",
		Stock:       75,
		IsAvailable: true,
	},
	{
		Name:        "Lápiz Faber-Castell HB",
		Description: "Lápiz grafito HB de alta calidad para escritura y dibujo técnico.",
		Price:       decimal.NewFromInt(180),
		Category:    "libreria",
		Image:       "/img/lapiz-faber-comun.jpeg",
		Stock:       120,
		IsAvailable: true,
	},
	{
		Name:        "Tijeras Escolares Maped",
		Description: "Tijeras de punta redonda, ideales para niños. Mango ergonómico y corte preciso.",
		Price:       decimal.NewFromInt(650),
		Category:    "escolar",
		Image:       "/img/maped-tijeras-escolares.png",
		Stock:       30,
		IsAvailable: true,
	},
	{
		Name:        "Marcadores Stabilo Boss Pack x4",
		Description: "Set de 4 marcadores resaltadores en colores amarillo, verde, rosa y naranja.",
		Price:       decimal.NewFromInt(890),
		Category:    "libreria",
		Image:       "/img/marcadores-tabilo.jpg",
		Stock:       45,
		IsAvailable: true,
	},
	{
		Name:        "Cartulinas Obra Pack x10",
		Description: "Pack de 10 cartulinas de colores variados. Perfectas para manualidades y proyectos.",
		Price:       decimal.NewFromInt(380),
		Category:    "escolar",
		Image:       "/img/cartulinas.jpeg",
		Stock:       25,
		IsAvailable: true,
	},
	{
		Name:        "Goma de Borrar Faber-Castell",
		Description: "Goma de borrar blanca, libre de PVC. Borra limpiamente sin dañar el papel.",
		Price:       decimal.NewFromInt(120),
		Category:    "libreria",
		Image:       "/img/goma-faber.webp",
		Stock:       100,
		IsAvailable: true,
	},
	{
		Name:        "Fotocopias B/N (por hoja)",
		Description: "Fotocopias en blanco y negro de alta calidad. Precio por hoja.",
		Price:       decimal.NewFromInt(25),
		Category:    "servicios",
		Image:       "/img/fotocopias-bn.webp",
		Stock:       999,
		IsAvailable: true,
	},
	{
		Name:        "Fotocopias Color (por hoja)",
		Description: "Fotocopias a color con tecnología láser. Precio por hoja.",
		Price:       decimal.NewFromInt(80),
		Category:    "servicios",
		Image:       "/img/fotocopias-color.jpg",
		Stock:       999,
		IsAvailable: true,
	},
}

func main() {
	force := flag.Bool("force", false, "seed even when products already exist")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := docstore.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("docstore connect: %v", err)
	}
	defer store.Close()

	existing, err := store.List(ctx, catalog.CollectionProducts)
	if err != nil {
		log.Fatalf("list products: %v", err)
	}
	if len(existing) > 0 && !*force {
		log.Printf("products collection already has %d documents, use -force to seed anyway", len(existing))
		return
	}

	now := time.Now().UTC()
	for _, p := range seedProducts {
		p.CreatedAt = now
		p.UpdatedAt = now
		id, err := store.Add(ctx, catalog.CollectionProducts, p)
		if err != nil {
			log.Fatalf("add product %q: %v", p.Name, err)
		}
		log.Printf("seeded %s (%s)", p.Name, id)
	}
	log.Printf("done, %d products", len(seedProducts))
}
