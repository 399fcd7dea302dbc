// Package spinor implements the generic driver layer for serial NOR flash
// chips: identification, size detection, erase, read, page program, status
// polling and I/O width configuration on top of a [Host] transport.
//
// [Generic] is usable as a driver on its own and as the base that chip
// family drivers embed, overriding only the operations that differ.
//
// # References:
//
// SPI Flash
//   - [N25Q32]: N25Q032A Micron Serial NOR Flash Memory datasheet (could not find the official public URL)
//   - [W25Q128]: W25Q128JV-DTR Winbond Serial Flash Memory (https://www.winbond.com/resource-files/W25Q128JV_DTR%20RevD%2012232024%20Plus.pdf)
//   - [MX25L256]: Macronix MX25L25635F Serial NOR Flash datasheet
//   - [GD25Q64]: GigaDevice GD25Q64C Serial NOR Flash datasheet
//   - [JESD216]: JEDEC Serial Flash Discoverable Parameters
package spinor
